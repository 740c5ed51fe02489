// Package mqtt connects the monitors to the vehicle bus: telemetry out,
// vehicle state samples and ground station commands in. Fakes are provided
// for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// Topic suffixes under <topic_prefix>/<vehicle_id>.
const (
	TopicState       = "state"
	TopicCommand     = "command"
	TopicModeRequest = "mode_request"
	TopicStatusText  = "statustext"
	TopicSequence    = "sequence_num"
	TopicPrearm      = "prearm_flag"
	TopicWind        = "wind_estimation"
	TopicSystem      = "system"
)

// Topic joins a vehicle base topic and a suffix.
func Topic(base, suffix string) string {
	return base + "/" + suffix
}

// Publisher publishes monitor output to the vehicle bus.
// Errors should be logged by the caller; they must not stop the run loop.
type Publisher interface {
	// PublishAction sends a mode change request or an operator notification.
	PublishAction(action logic.Action) error

	// PublishSequence sends the persisted disarm and flight counters.
	PublishSequence(seq logic.SequenceNumbers) error

	// PublishPrearm sends the pre-arm check flag.
	PublishPrearm(ok bool) error

	// PublishWind sends the latest wind estimate.
	PublishWind(w logic.WindState) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Source supplies the latest vehicle state and any pending commands.
// Both calls are non-blocking.
type Source interface {
	// Latest returns the most recent sample, or false if none has arrived yet.
	Latest() (logic.VehicleState, bool)

	// DrainCommands returns commands received since the previous call.
	DrainCommands() []Command
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ModeRequestPayload asks the autopilot to change flight mode.
type ModeRequestPayload struct {
	Mode      string `json:"mode"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// StatusTextPayload is an operator notification.
type StatusTextPayload struct {
	Severity  string `json:"severity"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// SequencePayload carries the persisted counters.
type SequencePayload struct {
	DisarmSeqNum int16 `json:"disarm_seq_num"`
	FlightSeqNum int16 `json:"flight_seq_num"`
}

// PrearmPayload carries the pre-arm check flag.
type PrearmPayload struct {
	PrearmFlag bool `json:"prearm_flag"`
}

// WindPayload carries a wind estimate.
type WindPayload struct {
	Speed     float64 `json:"speed"`
	Direction float64 `json:"direction"`
	HighWind  bool    `json:"high_wind"`
}

// FormatAction returns the topic suffix and JSON payload for an action.
func FormatAction(action logic.Action) (string, []byte, error) {
	ts := action.Timestamp.UTC().Format(time.RFC3339)
	switch action.Type {
	case logic.ActionModeChange:
		data, err := json.Marshal(ModeRequestPayload{
			Mode:      string(action.Mode),
			Reason:    string(action.Reason),
			Timestamp: ts,
		})
		return TopicModeRequest, data, err
	case logic.ActionNotify:
		data, err := json.Marshal(StatusTextPayload{
			Severity:  string(action.Severity),
			Text:      action.Text,
			Timestamp: ts,
		})
		return TopicStatusText, data, err
	default:
		return "", nil, fmt.Errorf("unknown action type %q", action.Type)
	}
}

// FormatSequence creates the JSON payload for the sequence counters.
func FormatSequence(seq logic.SequenceNumbers) ([]byte, error) {
	return json.Marshal(SequencePayload{DisarmSeqNum: seq.Disarm, FlightSeqNum: seq.Flight})
}

// FormatPrearm creates the JSON payload for the pre-arm flag.
func FormatPrearm(ok bool) ([]byte, error) {
	return json.Marshal(PrearmPayload{PrearmFlag: ok})
}

// FormatWind creates the JSON payload for a wind estimate.
func FormatWind(w logic.WindState) ([]byte, error) {
	return json.Marshal(WindPayload{Speed: w.Speed, Direction: w.Direction, HighWind: w.HighWind})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
