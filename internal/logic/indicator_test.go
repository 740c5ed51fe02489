package logic

import "testing"

func normalInput() IndicatorInput {
	return IndicatorInput{
		Initialised: true,
		PowerOn:     true,
		Toggle:      ToggleNormal,
		GPSFix:      GPSFix3D,
	}
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name string
		in   IndicatorInput
		want IndicatorStatus
	}{
		{"power off beats failsafe", IndicatorInput{PowerOn: false, AnyFailsafe: true, Armed: true, GPSFix: GPSFix3D}, IndicatorOff},
		{"failsafe beats armed gps", IndicatorInput{PowerOn: true, AnyFailsafe: true, Armed: true, GPSFix: GPSFix3D}, IndicatorFailsafe},
		{"armed with 2D fix", IndicatorInput{PowerOn: true, Armed: true, GPSFix: GPSFix2D}, IndicatorArmedGPS},
		{"armed with RTK", IndicatorInput{PowerOn: true, Armed: true, GPSFix: GPSRTKFixed}, IndicatorArmedGPS},
		{"disarmed with fix", IndicatorInput{PowerOn: true, GPSFix: GPSFix3D}, IndicatorDisarmedGPS},
		{"disarmed no fix", IndicatorInput{PowerOn: true, GPSFix: GPSNoFix}, IndicatorDisarmedNoGPS},
		{"disarmed no gps", IndicatorInput{PowerOn: true, GPSFix: GPSNone}, IndicatorDisarmedNoGPS},
		{"armed without fix", IndicatorInput{PowerOn: true, Armed: true, GPSFix: GPSNoFix}, IndicatorSystemError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIndicatorInitializingDoesNotDrive(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	in.Initialised = false

	for i := 0; i < 5; i++ {
		out := m.Step(in)
		if out.Drive {
			t.Fatalf("tick %d: pins driven before initialisation", i)
		}
		if out.Status != IndicatorInitializing {
			t.Errorf("tick %d: expected INITIALIZING, got %s", i, out.Status)
		}
	}
}

func TestIndicatorSolidPatterns(t *testing.T) {
	tests := []struct {
		name       string
		in         IndicatorInput
		status     IndicatorStatus
		red, green bool
	}{
		{"disarmed no gps", IndicatorInput{Initialised: true, PowerOn: true, Toggle: ToggleNormal}, IndicatorDisarmedNoGPS, true, true},
		{"system error", IndicatorInput{Initialised: true, PowerOn: true, Toggle: ToggleNormal, Armed: true}, IndicatorSystemError, true, false},
		{"off", IndicatorInput{Initialised: true, PowerOn: false, Toggle: ToggleNormal}, IndicatorOff, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewIndicatorMachine()
			for i := 0; i < 30; i++ {
				out := m.Step(tt.in)
				if out.Status != tt.status {
					t.Fatalf("tick %d: status got %s, want %s", i, out.Status, tt.status)
				}
				if !out.Drive || out.Red != tt.red || out.Green != tt.green {
					t.Fatalf("tick %d: got drive=%v red=%v green=%v, want red=%v green=%v",
						i, out.Drive, out.Red, out.Green, tt.red, tt.green)
				}
			}
		})
	}
}

func TestIndicatorDisarmedGPSDoubleFlash(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()

	// Two 12-tick cycles: green on at positions 1 and 3 only.
	for i := 0; i < 24; i++ {
		out := m.Step(in)
		pos := i%12 + 1
		wantGreen := pos == 1 || pos == 3
		if !out.Red {
			t.Errorf("tick %d: red should be solid", i)
		}
		if out.Green != wantGreen {
			t.Errorf("tick %d (pos %d): green got %v, want %v", i, pos, out.Green, wantGreen)
		}
	}
}

func TestIndicatorArmedGPSDoubleFlash(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	in.Armed = true

	for i := 0; i < 24; i++ {
		out := m.Step(in)
		pos := i%12 + 1
		want := pos == 1 || pos == 3
		if out.Red != want || out.Green != want {
			t.Errorf("tick %d (pos %d): got red=%v green=%v, want both %v", i, pos, out.Red, out.Green, want)
		}
	}
}

func TestIndicatorPhaseWraps(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()

	for i := 1; i <= 11; i++ {
		if out := m.Step(in); out.Phase != uint(i) {
			t.Fatalf("tick %d: phase got %d", i, out.Phase)
		}
	}
	if out := m.Step(in); out.Phase != 0 {
		t.Errorf("tick 12: expected phase wrapped to 0, got %d", out.Phase)
	}
}

func TestIndicatorFailsafeToggles(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	in.AnyFailsafe = true

	prev := m.Step(in)
	for i := 1; i < 10; i++ {
		out := m.Step(in)
		if out.Red == prev.Red || out.Green == prev.Green {
			t.Fatalf("tick %d: pins did not invert", i)
		}
		prev = out
	}
}

func TestIndicatorFailsafeFromSystemErrorAlternates(t *testing.T) {
	m := NewIndicatorMachine()
	in := IndicatorInput{Initialised: true, PowerOn: true, Toggle: ToggleNormal, Armed: true}
	m.Step(in) // SystemError: red on, green off

	in.AnyFailsafe = true
	out := m.Step(in)
	if out.Red || !out.Green {
		t.Errorf("expected red off, green on after first toggle, got red=%v green=%v", out.Red, out.Green)
	}
}

func TestIndicatorFailsafeKeepsPhase(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	for i := 0; i < 5; i++ {
		m.Step(in) // DisarmedGPS, phase advances to 5
	}

	nogps := in
	nogps.GPSFix = GPSNoFix
	m.Step(nogps) // DisarmedNoGPS
	if m.Phase() != 5 {
		t.Fatalf("expected phase preserved entering DISARMED_NO_GPS, got %d", m.Phase())
	}

	fs := nogps
	fs.AnyFailsafe = true
	out := m.Step(fs)
	if out.Status != IndicatorFailsafe {
		t.Fatalf("expected FAILSAFE, got %s", out.Status)
	}
	if out.Phase != 5 {
		t.Errorf("DISARMED_NO_GPS -> FAILSAFE should not reset phase, got %d", out.Phase)
	}
}

func TestIndicatorArmedGPSResetsPhase(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	for i := 0; i < 7; i++ {
		m.Step(in)
	}
	if m.Phase() != 7 {
		t.Fatalf("expected phase 7, got %d", m.Phase())
	}

	in.Armed = true
	out := m.Step(in)
	if out.Status != IndicatorArmedGPS {
		t.Fatalf("expected ARMED_GPS, got %s", out.Status)
	}
	// Reset to 0 then advanced once: first "on" position of the cycle.
	if out.Phase != 1 || !out.Red || !out.Green {
		t.Errorf("expected phase 1 with both on after reset, got phase=%d red=%v green=%v", out.Phase, out.Red, out.Green)
	}
}

func TestIndicatorToggleDisabledForcesOffOnce(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	m.Step(in)

	in.Toggle = ToggleDisabled
	out := m.Step(in)
	if !out.Drive || out.Red || out.Green {
		t.Errorf("expected one final drive with both off, got %+v", out)
	}

	for i := 0; i < 3; i++ {
		if out := m.Step(in); out.Drive {
			t.Fatalf("tick %d: pins driven while pattern disabled", i)
		}
	}

	// Pattern resumes when re-enabled.
	in.Toggle = ToggleNormal
	if out := m.Step(in); !out.Drive {
		t.Error("expected pattern to resume")
	}
}

func TestIndicatorToggleDisabledBeforeAnyPattern(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	in.Toggle = ToggleDisabled
	if out := m.Step(in); out.Drive {
		t.Error("nothing to switch off, pins should not be driven")
	}
}

func TestIndicatorOverride(t *testing.T) {
	for toggle := 2; toggle <= ToggleMax; toggle++ {
		m := NewIndicatorMachine()
		// Override works before initialisation and ignores classification inputs.
		out := m.Step(IndicatorInput{Toggle: toggle, PowerOn: true, AnyFailsafe: true})
		want := IndicatorStatus(toggle - 1)
		if out.Status != want {
			t.Errorf("toggle %d: got %s, want %s", toggle, out.Status, want)
		}
		if !out.Drive {
			t.Errorf("toggle %d: override should drive pins", toggle)
		}
	}
}

func TestIndicatorOverrideIgnoredWhileArmed(t *testing.T) {
	m := NewIndicatorMachine()
	in := normalInput()
	in.Armed = true
	in.Toggle = 7 // would force OFF

	out := m.Step(in)
	if out.Status != IndicatorArmedGPS {
		t.Errorf("override must not apply while armed, got %s", out.Status)
	}
}

func TestIndicatorOverrideUsesSamePhaseRule(t *testing.T) {
	m := NewIndicatorMachine()
	for i := 0; i < 4; i++ {
		m.Step(IndicatorInput{Toggle: 3}) // DisarmedGPS
	}
	if m.Phase() != 4 {
		t.Fatalf("expected phase 4, got %d", m.Phase())
	}

	m.Step(IndicatorInput{Toggle: 5}) // Failsafe
	if m.Phase() != 4 {
		t.Errorf("override into FAILSAFE should keep phase, got %d", m.Phase())
	}

	out := m.Step(IndicatorInput{Toggle: 4}) // ArmedGPS
	if out.Phase != 1 {
		t.Errorf("override into ARMED_GPS should reset phase, got %d", out.Phase)
	}
}

func TestIndicatorStatusString(t *testing.T) {
	if IndicatorArmedGPS.String() != "ARMED_GPS" {
		t.Errorf("got %q", IndicatorArmedGPS.String())
	}
	if IndicatorStatus(42).String() != "UNKNOWN" {
		t.Errorf("got %q", IndicatorStatus(42).String())
	}
}
