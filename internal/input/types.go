// Package input contains the per-input polling state machine.
// This package has NO external I/O: readings come from a ReadFunc and time
// from a Clock, both supplied by the caller.
package input

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/device-input/internal/callback"
)

var (
	ErrInvalidRange    = errors.New("invalid detection range")
	ErrConflictingRule = errors.New("both detection_exact and detection_range set")
	ErrInvalidInterval = errors.New("negative update interval")
	ErrNilReadFunc     = errors.New("nil read function")
)

// ReadFunc returns the current value of an input.
// It is called once per non-throttled tick and must be cheap.
type ReadFunc[T cmp.Ordered] func() (T, error)

// Clock returns monotonic time since an arbitrary origin.
type Clock func() time.Duration

// NewSystemClock returns a Clock whose origin is the moment of the call.
func NewSystemClock() Clock {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// Mode selects how a Rule matches readings.
type Mode int

const (
	ModeNone Mode = iota
	ModeExact
	ModeRange
)

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeRange:
		return "range"
	default:
		return "none"
	}
}

// Bounds is an inclusive [Min, Max] interval.
type Bounds[T cmp.Ordered] struct {
	Min T
	Max T
}

// Rule classifies a reading as detected or not. The zero Rule matches nothing.
type Rule[T cmp.Ordered] struct {
	mode   Mode
	exact  T
	bounds Bounds[T]
}

// Exact returns a rule matching readings equal to v.
func Exact[T cmp.Ordered](v T) Rule[T] {
	return Rule[T]{mode: ModeExact, exact: v}
}

// Range returns a rule matching readings in [min, max].
func Range[T cmp.Ordered](min, max T) (Rule[T], error) {
	if min > max {
		return Rule[T]{}, fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, min, max)
	}
	return Rule[T]{mode: ModeRange, bounds: Bounds[T]{Min: min, Max: max}}, nil
}

// Mode returns the active matching mode.
func (r Rule[T]) Mode() Mode {
	return r.mode
}

// Value returns the exact value (meaningful in ModeExact).
func (r Rule[T]) Value() T {
	return r.exact
}

// Bounds returns the range (meaningful in ModeRange).
func (r Rule[T]) Bounds() Bounds[T] {
	return r.bounds
}

// Match reports whether v satisfies the rule. No tolerance is applied.
func (r Rule[T]) Match(v T) bool {
	switch r.mode {
	case ModeExact:
		return v == r.exact
	case ModeRange:
		return v >= r.bounds.Min && v <= r.bounds.Max
	default:
		return false
	}
}

// String describes the rule, e.g. "exact 1" or "range [2, 5]".
func (r Rule[T]) String() string {
	switch r.mode {
	case ModeExact:
		return fmt.Sprintf("exact %v", r.exact)
	case ModeRange:
		return fmt.Sprintf("range [%v, %v]", r.bounds.Min, r.bounds.Max)
	default:
		return "none"
	}
}

func (r Rule[T]) validate() error {
	if r.mode == ModeRange && r.bounds.Min > r.bounds.Max {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, r.bounds.Min, r.bounds.Max)
	}
	return nil
}

// Config holds the construction options of an Input.
type Config[T cmp.Ordered] struct {
	// Exact and Range are mutually exclusive; setting both is an error.
	// Leaving both nil gives a rule that never matches.
	Exact *T
	Range *Bounds[T]

	// Invert flips the result of the rule.
	Invert bool

	// Interval is the minimum time between polls; 0 polls on every Update.
	Interval time.Duration

	// Capacity bounds the callbacks per event kind; 0 is unbounded.
	Capacity int

	// Clock defaults to NewSystemClock().
	Clock Clock

	// Callbacks are registered in order after the rule is validated.
	Callbacks []callback.Registration
}

// Rule resolves Exact/Range into a Rule.
func (c Config[T]) Rule() (Rule[T], error) {
	switch {
	case c.Exact != nil && c.Range != nil:
		return Rule[T]{}, ErrConflictingRule
	case c.Exact != nil:
		return Exact(*c.Exact), nil
	case c.Range != nil:
		return Range(c.Range.Min, c.Range.Max)
	default:
		return Rule[T]{}, nil
	}
}
