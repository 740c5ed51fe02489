package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// StatePayload is the vehicle state sample published by the autopilot bridge.
type StatePayload struct {
	Initialised bool       `json:"initialised"`
	Armed       bool       `json:"armed"`
	GPSFix      int        `json:"gps_fix"`
	AltitudeM   float64    `json:"altitude_m"`
	Wind        WindVector `json:"wind"`
	Mode        string     `json:"mode"`
	Failsafe    bool       `json:"failsafe"`
	PrearmOK    bool       `json:"prearm_ok"`
}

// WindVector is the estimated wind in the local NE frame, m/s.
type WindVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParseState decodes a vehicle state sample.
func ParseState(data []byte) (logic.VehicleState, error) {
	var p StatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return logic.VehicleState{}, fmt.Errorf("decode state: %w", err)
	}
	if p.GPSFix < int(logic.GPSNone) || p.GPSFix > int(logic.GPSRTKFixed) {
		return logic.VehicleState{}, fmt.Errorf("gps_fix %d out of range", p.GPSFix)
	}
	return logic.VehicleState{
		Initialised: p.Initialised,
		Armed:       p.Armed,
		GPSFix:      logic.GPSFix(p.GPSFix),
		AltitudeM:   p.AltitudeM,
		WindX:       p.Wind.X,
		WindY:       p.Wind.Y,
		Mode:        logic.FlightMode(p.Mode),
		Failsafe:    p.Failsafe,
		PrearmOK:    p.PrearmOK,
	}, nil
}

// CommandKind identifies a ground station command.
type CommandKind string

// Supported commands.
const (
	CommandLEDPower CommandKind = "LED_POWER"
	CommandParamSet CommandKind = "PARAM_SET"
)

// Command is a decoded ground station command.
type Command struct {
	Kind  CommandKind
	Param logic.ParamID // PARAM_SET only
	Value int16
}

// CommandPayload is the wire form of a command.
type CommandPayload struct {
	Command string   `json:"command"`
	Param   string   `json:"param,omitempty"`
	Value   *float64 `json:"value"`
}

var errMissingValue = errors.New("missing value")

// ParseCommand decodes and validates a command.
func ParseCommand(data []byte) (Command, error) {
	var p CommandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if p.Value == nil {
		return Command{}, fmt.Errorf("%s: %w", p.Command, errMissingValue)
	}
	v := *p.Value
	if v != math.Trunc(v) || v < math.MinInt16 || v > math.MaxInt16 {
		return Command{}, fmt.Errorf("%s: value %v is not an int16", p.Command, v)
	}

	switch CommandKind(p.Command) {
	case CommandLEDPower:
		return Command{Kind: CommandLEDPower, Value: int16(v)}, nil
	case CommandParamSet:
		id := logic.ParamID(p.Param)
		if id != logic.ParamDisarmSeqNum && id != logic.ParamFlightSeqNum {
			return Command{}, fmt.Errorf("unknown param %q", p.Param)
		}
		if v < 0 {
			return Command{}, fmt.Errorf("%s: counter value %v is negative", id, v)
		}
		return Command{Kind: CommandParamSet, Param: id, Value: int16(v)}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", p.Command)
	}
}

// inbox holds what the broker callbacks received until the run loop takes it.
type inbox struct {
	mu       sync.Mutex
	latest   logic.VehicleState
	have     bool
	commands []Command
}

func (in *inbox) setState(s logic.VehicleState) {
	in.mu.Lock()
	in.latest = s
	in.have = true
	in.mu.Unlock()
}

func (in *inbox) addCommand(c Command) {
	in.mu.Lock()
	in.commands = append(in.commands, c)
	in.mu.Unlock()
}

func (in *inbox) Latest() (logic.VehicleState, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.latest, in.have
}

func (in *inbox) DrainCommands() []Command {
	in.mu.Lock()
	defer in.mu.Unlock()
	cmds := in.commands
	in.commands = nil
	return cmds
}
