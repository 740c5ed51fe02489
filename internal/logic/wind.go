package logic

import (
	"math"
	"time"
)

// Wind monitor thresholds, in ticks at TickRate.
const (
	SoftWindTicks    = 50  // ~5 s
	HardWindTicks    = 30  // ~3 s
	SoftWindFraction = 0.7 // of the configured maximum wind speed
)

// WindFailsafeText is the operator notification sent when the failsafe fires.
const WindFailsafeText = "WIND FAILSAFE | RTL ENGAGED"

// WindInput is one tick's input to the wind monitor.
type WindInput struct {
	Time         time.Time
	WindX        float64
	WindY        float64
	Armed        bool
	Mode         FlightMode
	MaxWindSpeed float64 // m/s
}

// WindMonitor raises the high-wind flag and the wind failsafe.
//
// The soft stage sets HighWind once the vehicle has been armed with wind above
// SoftWindFraction of the maximum for more than SoftWindTicks. The hard stage
// requests ModeProtective once wind has been above the maximum for more than
// HardWindTicks, independent of arm state, and is inert while the vehicle is
// already in ModeProtective.
type WindMonitor struct {
	soft  *DebounceTimer
	hard  *DebounceTimer
	state WindState
}

// NewWindMonitor creates a wind monitor with the standard thresholds.
func NewWindMonitor() *WindMonitor {
	return &WindMonitor{
		soft: NewDebounceTimer(SoftWindTicks),
		hard: NewDebounceTimer(HardWindTicks),
	}
}

// Process advances the monitor by one tick and returns any actions to carry out.
func (w *WindMonitor) Process(in WindInput) []Action {
	w.update(in.WindX, in.WindY)

	soft := in.MaxWindSpeed * SoftWindFraction
	if in.Armed && w.state.Speed > soft {
		if w.soft.Advance(true) {
			w.state.HighWind = true
			// Re-arms immediately; the flag itself stays set until the condition clears.
			w.soft.Reset()
		}
	} else {
		w.state.HighWind = false
		w.soft.Reset()
	}

	if !w.hardStage(in.Mode, in.MaxWindSpeed) {
		return nil
	}

	w.state.FailsafeActive = true
	w.state.HighWind = true
	return []Action{
		{
			Timestamp: in.Time,
			Type:      ActionNotify,
			Severity:  SeverityCritical,
			Text:      WindFailsafeText,
		},
		{
			Timestamp: in.Time,
			Type:      ActionModeChange,
			Mode:      ModeProtective,
			Reason:    ReasonWindFailsafe,
		},
	}
}

// update recomputes speed and direction from the wind vector. No debounce.
func (w *WindMonitor) update(x, y float64) {
	w.state.Speed = math.Hypot(x, y)
	w.state.Direction = math.Atan2(-y, -x) * 180 / math.Pi
}

// hardStage reports whether the failsafe triggers on this tick.
func (w *WindMonitor) hardStage(mode FlightMode, maxSpeed float64) bool {
	if mode == ModeProtective {
		// Mode change observed: the failsafe has done its job.
		w.state.FailsafeActive = false
		return false
	}

	if w.hard.Advance(w.state.Speed > maxSpeed) {
		w.hard.Reset()
		return true
	}
	return false
}

// HasActiveWindFailsafe reports whether the wind failsafe is active.
func (w *WindMonitor) HasActiveWindFailsafe() bool {
	return w.state.FailsafeActive
}

// State returns the state after the latest tick.
func (w *WindMonitor) State() WindState {
	return w.state
}
