package logic

// IndicatorStatus is the system status shown on the two indicator lights.
type IndicatorStatus int

const (
	IndicatorInitializing IndicatorStatus = iota
	IndicatorDisarmedNoGPS
	IndicatorDisarmedGPS
	IndicatorArmedGPS
	IndicatorFailsafe
	IndicatorSystemError
	IndicatorOff
)

var indicatorNames = [...]string{
	IndicatorInitializing:  "INITIALIZING",
	IndicatorDisarmedNoGPS: "DISARMED_NO_GPS",
	IndicatorDisarmedGPS:   "DISARMED_GPS",
	IndicatorArmedGPS:      "ARMED_GPS",
	IndicatorFailsafe:      "FAILSAFE",
	IndicatorSystemError:   "SYSTEM_ERROR",
	IndicatorOff:           "OFF",
}

func (s IndicatorStatus) String() string {
	if s < 0 || int(s) >= len(indicatorNames) {
		return "UNKNOWN"
	}
	return indicatorNames[s]
}

// Indicator toggle values. Values 2..7 select a status directly for bench tests.
const (
	ToggleDisabled = 0
	ToggleNormal   = 1
	ToggleMax      = 7
)

// patternCycle is the blink cycle length in ticks (1.2 s at TickRate).
const patternCycle = 12

// IndicatorInput is one tick's input to the indicator state machine.
type IndicatorInput struct {
	Initialised bool
	Armed       bool
	GPSFix      GPSFix
	AnyFailsafe bool
	PowerOn     bool // indicator power request
	Toggle      int  // see ToggleDisabled, ToggleNormal; 2..7 override
}

// IndicatorOutput is the decided pin state for one tick.
// When Drive is false the pins must be left untouched.
type IndicatorOutput struct {
	Status IndicatorStatus
	Phase  uint
	Red    bool
	Green  bool
	Drive  bool
}

// IndicatorMachine classifies system status and generates blink patterns.
// It never touches hardware; a gpio.Indicator applies the output.
type IndicatorMachine struct {
	status  IndicatorStatus
	phase   uint
	red     bool
	green   bool
	driving bool // pins are being driven by a pattern
}

// NewIndicatorMachine creates a machine in the Initializing state.
func NewIndicatorMachine() *IndicatorMachine {
	return &IndicatorMachine{}
}

// Step advances the machine by one tick.
func (m *IndicatorMachine) Step(in IndicatorInput) IndicatorOutput {
	if in.Toggle == ToggleDisabled {
		if m.driving {
			m.driving = false
			m.red, m.green = false, false
			return m.output(true)
		}
		return m.output(false)
	}

	if !in.Armed && in.Toggle > ToggleNormal && in.Toggle <= ToggleMax {
		m.transition(IndicatorStatus(in.Toggle - 1))
		m.pattern()
		return m.output(true)
	}

	if !in.Initialised {
		m.status = IndicatorInitializing
		return m.output(false)
	}

	m.transition(Classify(in))
	m.pattern()
	return m.output(true)
}

// Classify returns the status for the given inputs in priority order:
// power off, failsafe, armed with GPS, disarmed with GPS, disarmed without GPS,
// and finally SystemError for the unexpected armed-without-GPS combination.
func Classify(in IndicatorInput) IndicatorStatus {
	switch {
	case !in.PowerOn:
		return IndicatorOff
	case in.AnyFailsafe:
		return IndicatorFailsafe
	case in.Armed && in.GPSFix.HasPosition():
		return IndicatorArmedGPS
	case !in.Armed && in.GPSFix.HasPosition():
		return IndicatorDisarmedGPS
	case !in.Armed:
		return IndicatorDisarmedNoGPS
	default:
		return IndicatorSystemError
	}
}

// transition switches status. Only entries into ArmedGPS and DisarmedGPS
// restart the blink phase.
func (m *IndicatorMachine) transition(next IndicatorStatus) {
	if next == m.status {
		return
	}
	m.status = next
	if next == IndicatorArmedGPS || next == IndicatorDisarmedGPS {
		m.phase = 0
	}
}

func (m *IndicatorMachine) pattern() {
	m.driving = true
	switch m.status {
	case IndicatorDisarmedNoGPS:
		m.red, m.green = true, true

	case IndicatorDisarmedGPS:
		m.red = true
		m.green = m.blink()

	case IndicatorArmedGPS:
		on := m.blink()
		m.red, m.green = on, on

	case IndicatorFailsafe:
		m.red, m.green = !m.red, !m.green

	case IndicatorSystemError:
		m.red, m.green = true, false

	case IndicatorOff:
		m.red, m.green = false, false
	}
}

// blink advances the phase and reports whether this is an "on" position
// of the double-flash pattern.
func (m *IndicatorMachine) blink() bool {
	m.phase++
	on := m.phase == 1 || m.phase == 3
	if m.phase >= patternCycle {
		m.phase = 0
	}
	return on
}

func (m *IndicatorMachine) output(drive bool) IndicatorOutput {
	return IndicatorOutput{
		Status: m.status,
		Phase:  m.phase,
		Red:    m.red,
		Green:  m.green,
		Drive:  drive,
	}
}

// Status returns the current status.
func (m *IndicatorMachine) Status() IndicatorStatus {
	return m.status
}

// Phase returns the current blink phase.
func (m *IndicatorMachine) Phase() uint {
	return m.phase
}
