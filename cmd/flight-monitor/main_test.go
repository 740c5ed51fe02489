package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/flight-monitor/internal/gpio"
	"github.com/sweeney/flight-monitor/internal/logic"
	"github.com/sweeney/flight-monitor/internal/mqtt"
	"github.com/sweeney/flight-monitor/internal/status"
)

// memStore is an in-memory parameter store.
type memStore struct {
	values map[logic.ParamID]int16
}

func newMemStore() *memStore {
	return &memStore{values: map[logic.ParamID]int16{}}
}

func (m *memStore) Int16(id logic.ParamID) int16 { return m.values[id] }

func (m *memStore) SetInt16IfChanged(id logic.ParamID, v int16) { m.values[id] = v }

func (m *memStore) Set(id logic.ParamID, v int16) error {
	m.values[id] = v
	return nil
}

// fakeRecorder records flight log calls.
type fakeRecorder struct {
	winds  int
	events []string
	prunes []int
}

func (r *fakeRecorder) RecordWind(context.Context, time.Time, logic.WindState) error {
	r.winds++
	return nil
}

func (r *fakeRecorder) PruneWind(_ context.Context, keep int) (int64, error) {
	r.prunes = append(r.prunes, keep)
	return 0, nil
}

func (r *fakeRecorder) RecordEvent(_ context.Context, _ time.Time, kind, detail string) error {
	r.events = append(r.events, kind+":"+detail)
	return nil
}

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample logic.VehicleState, n int) []logic.VehicleState {
	out := make([]logic.VehicleState, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

type harness struct {
	source   *mqtt.FakeSource
	pub      *mqtt.FakePublisher
	store    *memStore
	writer   *gpio.FakeWriter
	recorder *fakeRecorder
	tracker  *status.Tracker
	tun      *tunables
	hb       time.Duration
	keepWind int
	clock    func() time.Time
}

func newHarness(samples []logic.VehicleState) *harness {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &harness{
		source:   mqtt.NewFakeSource(samples),
		pub:      mqtt.NewFakePublisher(),
		store:    newMemStore(),
		writer:   gpio.NewFakeWriter(),
		recorder: &fakeRecorder{},
		tracker:  status.NewTracker(start, status.Config{VehicleID: "test"}),
		tun:      newTunables(12, logic.ToggleNormal),
		clock:    fakeClock(start, 100*time.Millisecond),
	}
}

// run drives runLoop for nTicks and then delivers signal.
func (h *harness) run(t *testing.T, nTicks int, signal os.Signal) {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(loopDeps{
			source:     h.source,
			publisher:  h.pub,
			mqttStatus: h.pub,
			store:      h.store,
			setter:     h.store,
			indicator:  gpio.NewPinIndicator(h.writer),
			recorder:   h.recorder,
			keepWind:   h.keepWind,
			tracker:    h.tracker,
			tunables:   h.tun,
			heartbeat:  h.hb,
			now:        h.clock,
		}, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

var (
	grounded = logic.VehicleState{Initialised: true, GPSFix: logic.GPSFix3D, Mode: logic.ModeLoiter, PrearmOK: true}
	flying   = logic.VehicleState{Initialised: true, Armed: true, GPSFix: logic.GPSFix3D, AltitudeM: 20, Mode: logic.ModeAuto}
)

func TestRunLoopShutdownWithoutSamples(t *testing.T) {
	h := newHarness(nil)
	h.run(t, 3, syscall.SIGTERM)

	if len(h.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(h.pub.SystemEvents))
	}
	se := h.pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGTERM" || !se.Retained {
		t.Errorf("unexpected shutdown event: %+v", se)
	}
	if se.RawPayload == nil {
		t.Error("expected status snapshot in SHUTDOWN payload")
	}
	if len(h.writer.Writes) != 0 {
		t.Errorf("indicator should not be driven before initialisation, got %d writes", len(h.writer.Writes))
	}
	if h.tracker.Snapshot().HaveSample {
		t.Error("tracker should report no sample")
	}
	if len(h.pub.Actions) != 0 || len(h.pub.Sequences) != 0 {
		t.Error("expected no actions and no sequence reports")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(repeat(grounded, 2))
	h.run(t, 2, syscall.SIGINT)

	se := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGINT" {
		t.Errorf("unexpected shutdown event: %+v", se)
	}
}

func TestRunLoopCountsFlight(t *testing.T) {
	samples := append(repeat(flying, 5), repeat(grounded, 3)...)
	h := newHarness(samples)
	h.run(t, len(samples), syscall.SIGTERM)

	if got := h.store.values[logic.ParamDisarmSeqNum]; got != 1 {
		t.Errorf("disarm counter: got %d, want 1", got)
	}
	if got := h.store.values[logic.ParamFlightSeqNum]; got != 1 {
		t.Errorf("flight counter: got %d, want 1", got)
	}
	if len(h.pub.Sequences) != 1 || h.pub.Sequences[0] != (logic.SequenceNumbers{Disarm: 1, Flight: 1}) {
		t.Errorf("expected one sequence report {1 1}, got %+v", h.pub.Sequences)
	}
	if len(h.recorder.events) != 2 || h.recorder.events[0] != "DISARM_SEQ:1" || h.recorder.events[1] != "FLIGHT_SEQ:1" {
		t.Errorf("unexpected flight log events: %v", h.recorder.events)
	}
	if h.recorder.winds != len(samples) {
		t.Errorf("expected a wind record per tick, got %d", h.recorder.winds)
	}
	if snap := h.tracker.Snapshot(); snap.Sequence.Disarm != 1 {
		t.Errorf("tracker sequence: got %+v", snap.Sequence)
	}
}

func TestRunLoopLowHopDoesNotCountFlight(t *testing.T) {
	hop := flying
	hop.AltitudeM = 3
	samples := append(repeat(hop, 5), repeat(grounded, 2)...)
	h := newHarness(samples)
	h.run(t, len(samples), syscall.SIGTERM)

	if h.store.values[logic.ParamDisarmSeqNum] != 1 || h.store.values[logic.ParamFlightSeqNum] != 0 {
		t.Errorf("expected disarm=1 flight=0, got %v", h.store.values)
	}
}

func TestRunLoopWindFailsafe(t *testing.T) {
	windy := flying
	windy.WindX = -15 // 15 m/s from the north
	inRTL := windy
	inRTL.Mode = logic.ModeRTL

	samples := append(repeat(windy, logic.HardWindTicks+1), repeat(inRTL, 40)...)
	h := newHarness(samples)
	h.run(t, len(samples), syscall.SIGTERM)

	if len(h.pub.Actions) != 2 {
		t.Fatalf("expected notify and mode change, got %d actions", len(h.pub.Actions))
	}
	if a := h.pub.Actions[0]; a.Type != logic.ActionNotify || a.Text != logic.WindFailsafeText {
		t.Errorf("unexpected notification: %+v", a)
	}
	if a := h.pub.Actions[1]; a.Type != logic.ActionModeChange || a.Mode != logic.ModeRTL || a.Reason != logic.ReasonWindFailsafe {
		t.Errorf("unexpected mode change: %+v", a)
	}

	snap := h.tracker.Snapshot()
	if snap.WindFailsafes != 1 {
		t.Errorf("WindFailsafes: got %d, want 1", snap.WindFailsafes)
	}
	if snap.Wind.FailsafeActive {
		t.Error("failsafe should clear once the vehicle is in RTL")
	}

	found := false
	for _, e := range h.recorder.events {
		if len(e) > 13 && e[:13] == "WIND_FAILSAFE" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected WIND_FAILSAFE in flight log, got %v", h.recorder.events)
	}
}

func TestRunLoopFailsafeDrivesIndicator(t *testing.T) {
	windy := flying
	windy.WindX = -15

	// Stay in AUTO so the failsafe stays active after triggering.
	n := logic.HardWindTicks + 5
	h := newHarness(repeat(windy, n))
	h.run(t, n, syscall.SIGTERM)

	if got := h.tracker.Snapshot().Indicator; got != logic.IndicatorFailsafe {
		t.Fatalf("indicator: got %v, want FAILSAFE", got)
	}
	w := h.writer.Writes
	last, prev := w[len(w)-1], w[len(w)-2]
	if last.Red == prev.Red || last.Green == prev.Green {
		t.Errorf("failsafe pattern should toggle each tick: %+v then %+v", prev, last)
	}
}

func TestRunLoopLEDPowerCommand(t *testing.T) {
	h := newHarness(repeat(grounded, 4))
	h.source.Commands = map[int][]mqtt.Command{2: {{Kind: mqtt.CommandLEDPower, Value: 0}}}
	h.run(t, 4, syscall.SIGTERM)

	if got := h.tracker.Snapshot().Indicator; got != logic.IndicatorOff {
		t.Errorf("indicator: got %v, want OFF", got)
	}
	if last, _ := h.writer.Last(); last.Red || last.Green {
		t.Errorf("lights should be off, got %+v", last)
	}
	if h.tracker.Snapshot().PowerOn {
		t.Error("tracker should report power off")
	}
}

func TestRunLoopParamSetResetsCounter(t *testing.T) {
	h := newHarness(repeat(grounded, 3))
	h.store.values[logic.ParamDisarmSeqNum] = 41
	h.source.Commands = map[int][]mqtt.Command{
		1: {{Kind: mqtt.CommandParamSet, Param: logic.ParamDisarmSeqNum, Value: 0}},
	}
	h.run(t, 3, syscall.SIGTERM)

	if got := h.store.values[logic.ParamDisarmSeqNum]; got != 0 {
		t.Errorf("disarm counter: got %d, want 0", got)
	}
	if len(h.pub.Sequences) != 1 || h.pub.Sequences[0].Disarm != 0 {
		t.Errorf("expected counters reported after PARAM_SET, got %+v", h.pub.Sequences)
	}
	if len(h.recorder.events) != 1 || h.recorder.events[0] != "PARAM_SET:DISARM_SEQ_NUM=0" {
		t.Errorf("unexpected flight log events: %v", h.recorder.events)
	}
}

func TestRunLoopTelemetryThrottles(t *testing.T) {
	h := newHarness(repeat(grounded, 12))
	h.run(t, 12, syscall.SIGTERM)

	if len(h.pub.Prearms) != 1 || !h.pub.Prearms[0] {
		t.Errorf("expected one pre-arm report, got %v", h.pub.Prearms)
	}
	if len(h.pub.Winds) != 2 {
		t.Errorf("expected two wind reports, got %d", len(h.pub.Winds))
	}
}

func TestRunLoopToggleDisabledLeavesPins(t *testing.T) {
	h := newHarness(repeat(grounded, 5))
	h.tun = newTunables(12, logic.ToggleDisabled)
	h.run(t, 5, syscall.SIGTERM)

	if len(h.writer.Writes) != 0 {
		t.Errorf("expected no pin writes with the pattern disabled, got %d", len(h.writer.Writes))
	}
}

func TestRunLoopMaxWindTunable(t *testing.T) {
	breezy := flying
	breezy.WindX = -6

	n := logic.HardWindTicks + 1
	h := newHarness(repeat(breezy, n))
	h.tun = newTunables(5, logic.ToggleNormal)
	h.run(t, n, syscall.SIGTERM)

	if len(h.pub.Actions) != 2 {
		t.Errorf("expected failsafe with max wind 5, got %d actions", len(h.pub.Actions))
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// The clock is read once at loop start, then once per tick:
	// t0 = start, ticks at +5m, +10m, +15m (heartbeat), +20m.
	h := newHarness(repeat(grounded, 4))
	h.clock = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	h.hb = 15 * time.Minute
	h.run(t, 4, syscall.SIGTERM)

	var heartbeats, shutdowns int
	for _, se := range h.pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			if se.RawPayload == nil {
				t.Error("HEARTBEAT event missing status snapshot")
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
	if len(h.pub.Sequences) != 1 {
		t.Errorf("expected counters with the heartbeat, got %d reports", len(h.pub.Sequences))
	}
}

func TestRunLoopPublishError(t *testing.T) {
	windy := flying
	windy.WindX = -15
	n := logic.HardWindTicks + 20

	h := newHarness(append(repeat(windy, n), repeat(grounded, 2)...))
	h.pub.PublishError = errors.New("broker unavailable")
	h.run(t, n+2, syscall.SIGTERM)

	if len(h.pub.Actions) != 0 || len(h.pub.Sequences) != 0 {
		t.Error("failed publishes should not be recorded")
	}
	if h.store.values[logic.ParamDisarmSeqNum] != 1 {
		t.Error("counters must still advance when publishing fails")
	}
	if h.tracker.Snapshot().WindFailsafes != 1 {
		t.Error("failsafe must still be tracked when publishing fails")
	}
	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestTunables(t *testing.T) {
	tun := newTunables(12, 1)
	tun.set(8, 3)
	if maxWind, toggle := tun.get(); maxWind != 8 || toggle != 3 {
		t.Errorf("got %v %d", maxWind, toggle)
	}
}

func TestRunLoopPrunesWindRecords(t *testing.T) {
	// Ticks at +5m, +10m (prune), +15m, +20m (prune).
	h := newHarness(repeat(grounded, 4))
	h.clock = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	h.keepWind = 500
	h.run(t, 4, syscall.SIGTERM)

	if len(h.recorder.prunes) != 2 {
		t.Fatalf("expected 2 prunes, got %d", len(h.recorder.prunes))
	}
	if h.recorder.prunes[0] != 500 {
		t.Errorf("prune keep: got %d, want 500", h.recorder.prunes[0])
	}
}

func TestRunLoopNoPruneWhenUnbounded(t *testing.T) {
	h := newHarness(repeat(grounded, 4))
	h.clock = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	h.run(t, 4, syscall.SIGTERM)

	if len(h.recorder.prunes) != 0 {
		t.Errorf("expected no prunes with keepWind=0, got %d", len(h.recorder.prunes))
	}
}
