//go:build linux

package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads one pin through periph.io, for boards the character
// device does not expose.
type PeriphReader struct {
	pin       pgpio.PinIO
	activeLow bool
}

// NewPeriphReader initialises the periph host and configures pin as an input.
// host.Init is safe to call more than once.
func NewPeriphReader(name string, pull Pull, activeLow bool) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph: no pin named %q", name)
	}

	bias := pgpio.Float
	switch pull {
	case PullUp:
		bias = pgpio.PullUp
	case PullDown:
		bias = pgpio.PullDown
	}
	if err := p.In(bias, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", name, err)
	}

	return &PeriphReader{pin: p, activeLow: activeLow}, nil
}

// Read returns 1 when the pin is logically active.
func (r *PeriphReader) Read() (int, error) {
	high := r.pin.Read() == pgpio.High
	if high != r.activeLow {
		return 1, nil
	}
	return 0, nil
}

// Close halts the pin.
func (r *PeriphReader) Close() error {
	if err := r.pin.Halt(); err != nil {
		return fmt.Errorf("halt %s: %w", r.pin.Name(), err)
	}
	return nil
}
