// Package logic contains the pure per-tick monitors for the flight monitor.
// This package has NO external dependencies (no GPIO, MQTT, storage, OS, or time.Sleep).
// Every monitor is advanced once per tick by the caller; none of them block.
package logic

import "time"

// TickRate is the nominal run-loop frequency the tick thresholds assume.
const TickRate = 10 // Hz

// FlightMode identifies the vehicle's current navigation mode.
type FlightMode string

const (
	ModeStabilize FlightMode = "STABILIZE"
	ModeAltHold   FlightMode = "ALT_HOLD"
	ModeLoiter    FlightMode = "LOITER"
	ModeAuto      FlightMode = "AUTO"
	ModeGuided    FlightMode = "GUIDED"
	ModeLand      FlightMode = "LAND"
	ModeRTL       FlightMode = "RTL"
)

// ModeProtective is the mode the wind failsafe requests.
const ModeProtective = ModeRTL

// GPSFix is the ordered GPS fix quality reported by the vehicle.
type GPSFix int

const (
	GPSNone GPSFix = iota
	GPSNoFix
	GPSFix2D
	GPSFix3D
	GPSDGPS
	GPSRTKFloat
	GPSRTKFixed
)

// HasPosition reports whether the fix is 2D or better.
func (f GPSFix) HasPosition() bool {
	return f >= GPSFix2D
}

// VehicleState is one sample of the vehicle signals the monitors consume.
type VehicleState struct {
	Initialised bool
	Armed       bool
	GPSFix      GPSFix
	AltitudeM   float64 // above reference, up-positive
	WindX       float64 // m/s, north
	WindY       float64 // m/s, east
	Mode        FlightMode
	Failsafe    bool // any failsafe raised by the vehicle itself
	PrearmOK    bool
}

// ActionType identifies a side effect requested by a monitor.
type ActionType string

const (
	ActionModeChange ActionType = "MODE_CHANGE"
	ActionNotify     ActionType = "NOTIFY"
)

// Severity of an operator notification.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// ModeReason is the cause code attached to a mode-change request.
type ModeReason string

const ReasonWindFailsafe ModeReason = "WIND_FAILSAFE"

// Action is a side effect a monitor asks the run loop to carry out.
type Action struct {
	Timestamp time.Time
	Type      ActionType
	Mode      FlightMode // ActionModeChange only
	Reason    ModeReason // ActionModeChange only
	Severity  Severity   // ActionNotify only
	Text      string     // ActionNotify only
}

// ParamID is the stable identifier of a persisted parameter.
type ParamID string

const (
	ParamDisarmSeqNum ParamID = "DISARM_SEQ_NUM"
	ParamFlightSeqNum ParamID = "FLIGHT_SEQ_NUM"
)

// ParamStore is the persisted parameter service the sequence counters use.
// Int16 returns the current value (0 if never set). SetInt16IfChanged writes
// only when v differs from the stored value; failures are the store's concern.
type ParamStore interface {
	Int16(id ParamID) int16
	SetInt16IfChanged(id ParamID, v int16)
}

// SequenceNumbers is the combined counter record sent to the ground station.
type SequenceNumbers struct {
	Disarm int16
	Flight int16
}

// WindState is the wind monitor's view after the latest tick.
type WindState struct {
	Speed          float64 // m/s
	Direction      float64 // degrees, -180..180, direction the wind blows from
	HighWind       bool
	FailsafeActive bool
}
