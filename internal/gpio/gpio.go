// Package gpio provides input line reading with hardware abstraction.
// The real implementations use the Linux GPIO character device (go-gpiocdev)
// or periph.io. The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Reader reads the value of one input line.
type Reader interface {
	// Read returns the logical value of the line (0 or 1 for digital lines,
	// after active-low inversion).
	Read() (int, error)

	// Close releases the line.
	Close() error
}

// Backend selects the Reader implementation.
type Backend string

const (
	BackendGPIOCDev Backend = "gpiocdev"
	BackendPeriph   Backend = "periph"
	BackendFake     Backend = "fake"
)

// Pull selects the line bias.
type Pull string

const (
	PullNone Pull = ""
	PullUp   Pull = "up"
	PullDown Pull = "down"
)

// DefaultChip is the gpiochip used when none is configured.
const DefaultChip = "gpiochip0"

// LineConfig describes where and how to read one line.
type LineConfig struct {
	Backend   Backend
	Chip      string // gpiocdev chip name
	Line      int    // gpiocdev line offset (BCM number on a Pi)
	Pin       string // periph pin name, e.g. "GPIO17"
	Pull      Pull
	ActiveLow bool
	Samples   []int // fake backend only
}

// ParsePull validates a configured bias name.
func ParsePull(s string) (Pull, error) {
	switch p := Pull(strings.ToLower(strings.TrimSpace(s))); p {
	case PullNone, PullUp, PullDown:
		return p, nil
	default:
		return "", fmt.Errorf("gpio: unknown pull %q (want up, down or empty)", s)
	}
}

// Open returns a Reader for cfg.
func Open(cfg LineConfig) (Reader, error) {
	switch cfg.Backend {
	case BackendGPIOCDev, "":
		chip := cfg.Chip
		if chip == "" {
			chip = DefaultChip
		}
		r, err := NewRealReader(chip, cfg.Line, cfg.Pull, cfg.ActiveLow)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendPeriph:
		pin := cfg.Pin
		if pin == "" {
			pin = fmt.Sprintf("GPIO%d", cfg.Line)
		}
		r, err := NewPeriphReader(pin, cfg.Pull, cfg.ActiveLow)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendFake:
		return NewFakeReader(cfg.Samples), nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}
