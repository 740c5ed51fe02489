// Package status provides a thread-safe status tracker for the flight-monitor daemon.
// It is written by the run loop and read by HTTP handlers and lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	VehicleID    string
	TickMs       int64
	HeartbeatMs  int64
	Broker       string
	MaxWindSpeed float64
	Toggle       int
	Indicator    bool // hardware indicator enabled
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Vehicle       logic.VehicleState
	HaveSample    bool
	Wind          logic.WindState
	Indicator     logic.IndicatorStatus
	Phase         uint
	Sequence      logic.SequenceNumbers
	PowerOn       bool
	WindFailsafes int
	LastFailsafe  time.Time // zero if none since start
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// TickState is everything the run loop reports after a tick.
type TickState struct {
	Vehicle    logic.VehicleState
	HaveSample bool
	Wind       logic.WindState
	Indicator  logic.IndicatorOutput
	Sequence   logic.SequenceNumbers
	PowerOn    bool
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			PowerOn:   true,
		},
	}
}

// Update records the outcome of one tick.
func (t *Tracker) Update(s TickState) {
	t.mu.Lock()
	t.snap.Vehicle = s.Vehicle
	t.snap.HaveSample = s.HaveSample
	t.snap.Wind = s.Wind
	t.snap.Indicator = s.Indicator.Status
	t.snap.Phase = s.Indicator.Phase
	t.snap.Sequence = s.Sequence
	t.snap.PowerOn = s.PowerOn
	t.mu.Unlock()
}

// RecordWindFailsafe notes a wind failsafe trigger at the given time.
func (t *Tracker) RecordWindFailsafe(at time.Time) {
	t.mu.Lock()
	t.snap.WindFailsafes++
	t.snap.LastFailsafe = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetTunables records live-reloaded settings.
func (t *Tracker) SetTunables(maxWind float64, toggle int) {
	t.mu.Lock()
	t.snap.Config.MaxWindSpeed = maxWind
	t.snap.Config.Toggle = toggle
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
