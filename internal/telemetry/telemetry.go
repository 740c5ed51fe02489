// Package telemetry throttles the monitors' periodic reports onto a publisher.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// Report periods in ticks.
const (
	PrearmPeriod = 11
	WindPeriod   = 6
)

// Sink receives the reports. mqtt.Publisher satisfies it.
type Sink interface {
	PublishSequence(seq logic.SequenceNumbers) error
	PublishPrearm(ok bool) error
	PublishWind(w logic.WindState) error
}

// Throttle fires on every period-th call.
type Throttle struct {
	period uint
	count  uint
}

// NewThrottle creates a throttle. A period of 0 or 1 fires on every call.
func NewThrottle(period uint) *Throttle {
	if period == 0 {
		period = 1
	}
	return &Throttle{period: period}
}

// Ready counts one call and reports whether this call should send.
func (t *Throttle) Ready() bool {
	t.count++
	if t.count >= t.period {
		t.count = 0
		return true
	}
	return false
}

// Reporter sends throttled telemetry once per tick.
type Reporter struct {
	sink   Sink
	prearm *Throttle
	wind   *Throttle
}

// NewReporter creates a Reporter with the standard periods.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{
		sink:   sink,
		prearm: NewThrottle(PrearmPeriod),
		wind:   NewThrottle(WindPeriod),
	}
}

// SendSequence sends the counters immediately.
func (r *Reporter) SendSequence(seq logic.SequenceNumbers) error {
	if err := r.sink.PublishSequence(seq); err != nil {
		return fmt.Errorf("sequence_num: %w", err)
	}
	return nil
}

// Tick advances both throttles and sends whichever reports are due.
// Every due report is attempted even if an earlier one fails.
func (r *Reporter) Tick(prearmOK bool, wind logic.WindState) error {
	var errs []error
	if r.prearm.Ready() {
		if err := r.sink.PublishPrearm(prearmOK); err != nil {
			errs = append(errs, fmt.Errorf("prearm_flag: %w", err))
		}
	}
	if r.wind.Ready() {
		if err := r.sink.PublishWind(wind); err != nil {
			errs = append(errs, fmt.Errorf("wind_estimation: %w", err))
		}
	}
	return errors.Join(errs...)
}
