package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	VehicleID     string        `json:"vehicle_id"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Vehicle       VehicleJSON   `json:"vehicle"`
	Wind          WindJSON      `json:"wind"`
	Indicator     IndicatorJSON `json:"indicator"`
	Sequence      SequenceJSON  `json:"sequence"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// VehicleJSON is the latest vehicle state sample.
type VehicleJSON struct {
	Initialised bool    `json:"initialised"`
	Armed       bool    `json:"armed"`
	GPSFix      int     `json:"gps_fix"`
	AltitudeM   float64 `json:"altitude_m"`
	Mode        string  `json:"mode"`
	Failsafe    bool    `json:"failsafe"`
	PrearmOK    bool    `json:"prearm_ok"`
}

// WindJSON reports the wind monitor.
type WindJSON struct {
	Speed          float64 `json:"speed"`
	Direction      float64 `json:"direction"`
	HighWind       bool    `json:"high_wind"`
	FailsafeActive bool    `json:"failsafe_active"`
	Failsafes      int     `json:"failsafes"`
	LastFailsafe   string  `json:"last_failsafe,omitempty"`
}

// IndicatorJSON reports the status indicator.
type IndicatorJSON struct {
	Status  string `json:"status"`
	Phase   uint   `json:"phase"`
	PowerOn bool   `json:"power_on"`
}

// SequenceJSON reports the persisted counters.
type SequenceJSON struct {
	Disarm int16 `json:"disarm_seq_num"`
	Flight int16 `json:"flight_seq_num"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs       int64   `json:"tick_ms"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
	Broker       string  `json:"broker"`
	MaxWindSpeed float64 `json:"max_wind_speed"`
	Toggle       int     `json:"indicator_toggle"`
	Indicator    bool    `json:"indicator_enabled"`
	HTTPAddr     string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		VehicleID:     snap.Config.VehicleID,
		Ready:         snap.HaveSample && snap.Vehicle.Initialised,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Vehicle: VehicleJSON{
			Initialised: snap.Vehicle.Initialised,
			Armed:       snap.Vehicle.Armed,
			GPSFix:      int(snap.Vehicle.GPSFix),
			AltitudeM:   snap.Vehicle.AltitudeM,
			Mode:        string(snap.Vehicle.Mode),
			Failsafe:    snap.Vehicle.Failsafe,
			PrearmOK:    snap.Vehicle.PrearmOK,
		},
		Wind: WindJSON{
			Speed:          snap.Wind.Speed,
			Direction:      snap.Wind.Direction,
			HighWind:       snap.Wind.HighWind,
			FailsafeActive: snap.Wind.FailsafeActive,
			Failsafes:      snap.WindFailsafes,
		},
		Indicator: IndicatorJSON{
			Status:  snap.Indicator.String(),
			Phase:   snap.Phase,
			PowerOn: snap.PowerOn,
		},
		Sequence: SequenceJSON{Disarm: snap.Sequence.Disarm, Flight: snap.Sequence.Flight},
		MQTT:     MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			TickMs:       snap.Config.TickMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			MaxWindSpeed: snap.Config.MaxWindSpeed,
			Toggle:       snap.Config.Toggle,
			Indicator:    snap.Config.Indicator,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if !snap.LastFailsafe.IsZero() {
		inner.Wind.LastFailsafe = snap.LastFailsafe.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
