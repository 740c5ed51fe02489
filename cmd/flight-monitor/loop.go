package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/flight-monitor/internal/flightlog"
	"github.com/sweeney/flight-monitor/internal/gpio"
	"github.com/sweeney/flight-monitor/internal/logic"
	"github.com/sweeney/flight-monitor/internal/metrics"
	"github.com/sweeney/flight-monitor/internal/mqtt"
	"github.com/sweeney/flight-monitor/internal/status"
	"github.com/sweeney/flight-monitor/internal/telemetry"
)

// pruneInterval is how often the flight log's wind records are trimmed.
const pruneInterval = 10 * time.Minute

// paramSetter applies PARAM_SET commands.
type paramSetter interface {
	Set(id logic.ParamID, v int16) error
}

// tunables are the settings a config reload may change while running.
type tunables struct {
	mu      sync.Mutex
	maxWind float64
	toggle  int
}

func newTunables(maxWind float64, toggle int) *tunables {
	return &tunables{maxWind: maxWind, toggle: toggle}
}

func (t *tunables) set(maxWind float64, toggle int) {
	t.mu.Lock()
	t.maxWind, t.toggle = maxWind, toggle
	t.mu.Unlock()
}

func (t *tunables) get() (float64, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxWind, t.toggle
}

// loopDeps are the run loop's collaborators. mqttStatus, setter, recorder
// and tracker may be nil.
type loopDeps struct {
	source     mqtt.Source
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	store      logic.ParamStore
	setter     paramSetter
	indicator  gpio.Indicator
	recorder   flightlog.Recorder
	keepWind   int // wind records kept by pruning, 0 keeps all
	tracker    *status.Tracker
	tunables   *tunables
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := d.now()
	lastHeartbeat := startTime
	lastPrune := startTime
	ctx := context.Background()

	sequence := logic.NewSequenceTracker(d.store)
	wind := logic.NewWindMonitor()
	lights := logic.NewIndicatorMachine()
	reporter := telemetry.NewReporter(d.publisher)
	powerOn := true

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := d.now()
			vs, haveSample := d.source.Latest()
			paramSet := false
			for _, cmd := range d.source.DrainCommands() {
				powerOn = applyCommand(ctx, d, cmd, t, powerOn)
				paramSet = paramSet || cmd.Kind == mqtt.CommandParamSet
			}
			maxWind, toggle := d.tunables.get()

			seq, changed := sequence.Evaluate(vs.Armed, vs.AltitudeM)
			if changed.Any() || paramSet {
				log.Printf("sequence: disarm=%d flight=%d", seq.Disarm, seq.Flight)
				if err := reporter.SendSequence(seq); err != nil {
					log.Printf("publish error: %v", err)
					metrics.PublishFailed(mqtt.TopicSequence)
				}
				recordSequence(ctx, d.recorder, t, seq, changed)
			}

			actions := wind.Process(logic.WindInput{
				Time:         t,
				WindX:        vs.WindX,
				WindY:        vs.WindY,
				Armed:        vs.Armed,
				Mode:         vs.Mode,
				MaxWindSpeed: maxWind,
			})
			for _, action := range actions {
				executeAction(ctx, d, action, wind.State())
			}

			out := lights.Step(logic.IndicatorInput{
				Initialised: vs.Initialised,
				Armed:       vs.Armed,
				GPSFix:      vs.GPSFix,
				AnyFailsafe: vs.Failsafe || wind.HasActiveWindFailsafe(),
				PowerOn:     powerOn,
				Toggle:      toggle,
			})
			if err := d.indicator.Apply(out); err != nil {
				log.Printf("indicator write error: %v", err)
			}

			ws := wind.State()
			if err := reporter.Tick(vs.PrearmOK, ws); err != nil {
				log.Printf("publish error: %v", err)
				metrics.PublishFailed("telemetry")
			}
			if d.recorder != nil {
				if err := d.recorder.RecordWind(ctx, t, ws); err != nil {
					log.Printf("flightlog: %v", err)
				}
				if d.keepWind > 0 && t.Sub(lastPrune) >= pruneInterval {
					lastPrune = t
					if n, err := d.recorder.PruneWind(ctx, d.keepWind); err != nil {
						log.Printf("flightlog: %v", err)
					} else if n > 0 {
						log.Printf("flightlog: pruned %d wind records", n)
					}
				}
			}
			metrics.ObserveTick(ws, out.Status, seq)

			if d.tracker != nil {
				d.tracker.Update(status.TickState{
					Vehicle:    vs,
					HaveSample: haveSample,
					Wind:       ws,
					Indicator:  out,
					Sequence:   seq,
					PowerOn:    powerOn,
				})
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
			}

			// Check for heartbeat
			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				log.Printf("heartbeat: uptime=%v disarm=%d flight=%d wind=%.1f indicator=%s",
					t.Sub(startTime), seq.Disarm, seq.Flight, ws.Speed, out.Status)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
				if err := reporter.SendSequence(seq); err != nil {
					log.Printf("publish error: %v", err)
					metrics.PublishFailed(mqtt.TopicSequence)
				}
			}
		}
	}
}

// applyCommand carries out one ground station command and returns the new
// indicator power request.
func applyCommand(ctx context.Context, d loopDeps, cmd mqtt.Command, t time.Time, powerOn bool) bool {
	switch cmd.Kind {
	case mqtt.CommandLEDPower:
		log.Printf("command: LED_POWER value=%d", cmd.Value)
		return cmd.Value != 0
	case mqtt.CommandParamSet:
		if d.setter == nil {
			log.Printf("command: PARAM_SET %s ignored, no writable store", cmd.Param)
			return powerOn
		}
		if err := d.setter.Set(cmd.Param, cmd.Value); err != nil {
			log.Printf("command: PARAM_SET %s=%d failed: %v", cmd.Param, cmd.Value, err)
			return powerOn
		}
		log.Printf("command: PARAM_SET %s=%d", cmd.Param, cmd.Value)
		if d.recorder != nil {
			if err := d.recorder.RecordEvent(ctx, t, flightlog.KindParamSet, fmt.Sprintf("%s=%d", cmd.Param, cmd.Value)); err != nil {
				log.Printf("flightlog: %v", err)
			}
		}
	}
	return powerOn
}

// executeAction publishes a wind monitor action and records failsafe triggers.
func executeAction(ctx context.Context, d loopDeps, action logic.Action, ws logic.WindState) {
	switch action.Type {
	case logic.ActionNotify:
		log.Printf("statustext: [%s] %s", action.Severity, action.Text)
	case logic.ActionModeChange:
		log.Printf("mode request: %s reason=%s wind=%.1f", action.Mode, action.Reason, ws.Speed)
		metrics.WindFailsafeTriggered()
		if d.tracker != nil {
			d.tracker.RecordWindFailsafe(action.Timestamp)
		}
		if d.recorder != nil {
			detail := fmt.Sprintf("speed=%.1f direction=%.0f", ws.Speed, ws.Direction)
			if err := d.recorder.RecordEvent(ctx, action.Timestamp, flightlog.KindWindFailsafe, detail); err != nil {
				log.Printf("flightlog: %v", err)
			}
		}
	}
	if err := d.publisher.PublishAction(action); err != nil {
		log.Printf("publish error: %v", err)
		metrics.PublishFailed(string(action.Type))
		// Don't crash on publish failure
	}
}

func recordSequence(ctx context.Context, r flightlog.Recorder, t time.Time, seq logic.SequenceNumbers, changed logic.SequenceChange) {
	if r == nil {
		return
	}
	if changed.Disarm {
		if err := r.RecordEvent(ctx, t, flightlog.KindDisarm, fmt.Sprintf("%d", seq.Disarm)); err != nil {
			log.Printf("flightlog: %v", err)
		}
	}
	if changed.Flight {
		if err := r.RecordEvent(ctx, t, flightlog.KindFlight, fmt.Sprintf("%d", seq.Flight)); err != nil {
			log.Printf("flightlog: %v", err)
		}
	}
}
