// Package gpio drives the indicator lights with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/flight-monitor/internal/logic"

// Writer drives the two indicator output lines.
type Writer interface {
	// Write sets the logical states of the red and green lights (true = lit).
	Write(red, green bool) error

	// Close switches the lights off and releases GPIO resources.
	Close() error
}

// Indicator applies the indicator state machine's output to hardware.
// Vehicles without indicator lights use NoopIndicator.
type Indicator interface {
	Apply(out logic.IndicatorOutput) error
	Close() error
}

// PinIndicator applies indicator output through a Writer.
type PinIndicator struct {
	w Writer
}

// NewPinIndicator creates an indicator backed by w.
func NewPinIndicator(w Writer) *PinIndicator {
	return &PinIndicator{w: w}
}

// Apply writes the pin levels. Outputs with Drive unset leave the pins alone.
func (p *PinIndicator) Apply(out logic.IndicatorOutput) error {
	if !out.Drive {
		return nil
	}
	return p.w.Write(out.Red, out.Green)
}

// Close closes the underlying writer.
func (p *PinIndicator) Close() error {
	return p.w.Close()
}

// NoopIndicator is the indicator for hardware variants without lights.
type NoopIndicator struct{}

// Apply does nothing.
func (NoopIndicator) Apply(logic.IndicatorOutput) error { return nil }

// Close does nothing.
func (NoopIndicator) Close() error { return nil }
