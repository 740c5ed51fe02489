//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives the indicator lights through the Linux GPIO character device.
type RealWriter struct {
	chip     *gpiocdev.Chip
	redPin   *gpiocdev.Line
	greenPin *gpiocdev.Line
}

// NewRealWriter requests the two lines as outputs, initially off.
func NewRealWriter(chipName string, pinRed, pinGreen int) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	redLine, err := chip.RequestLine(pinRed, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request red pin %d: %w", pinRed, err)
	}

	greenLine, err := chip.RequestLine(pinGreen, gpiocdev.AsOutput(0))
	if err != nil {
		redLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request green pin %d: %w", pinGreen, err)
	}

	return &RealWriter{
		chip:     chip,
		redPin:   redLine,
		greenPin: greenLine,
	}, nil
}

// Write sets both lights. Lines are active-high: lit = 1.
func (w *RealWriter) Write(red, green bool) error {
	if err := w.redPin.SetValue(level(red)); err != nil {
		return fmt.Errorf("write red pin: %w", err)
	}
	if err := w.greenPin.SetValue(level(green)); err != nil {
		return fmt.Errorf("write green pin: %w", err)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}

// Close switches both lights off and returns the lines to inputs with
// pull-down (Pi boot defaults) before releasing them.
func (w *RealWriter) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{{"red", w.redPin}, {"green", w.greenPin}} {
		if l.line == nil {
			continue
		}
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s pin: %w", l.name, err))
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
