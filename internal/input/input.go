package input

import (
	"cmp"
	"fmt"
	"time"

	"github.com/sweeney/device-input/internal/callback"
)

// Input polls one ReadFunc, classifies readings against a Rule and dispatches
// edge events to its own callback registry.
//
// Not safe for concurrent use. The rule, read function and callbacks may be
// changed between calls to Update, never during one.
type Input[T cmp.Ordered] struct {
	read     ReadFunc[T]
	clock    Clock
	rule     Rule[T]
	invert   bool
	interval time.Duration
	lastPoll time.Duration
	polled   bool

	reading     T
	lastReading T

	detected     bool
	lastDetected bool

	// Edges seen on the most recent successful poll.
	rising    bool
	falling   bool
	toggled   bool
	untoggled bool

	toggleAt       time.Duration
	untoggleAt     time.Duration
	lastToggleAt   time.Duration
	lastUntoggleAt time.Duration

	callbacks *callback.Registry
}

// New creates an Input reading from read.
func New[T cmp.Ordered](read ReadFunc[T], cfg Config[T]) (*Input[T], error) {
	if read == nil {
		return nil, ErrNilReadFunc
	}
	rule, err := cfg.Rule()
	if err != nil {
		return nil, err
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, cfg.Interval)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewSystemClock()
	}

	in := &Input[T]{
		read:      read,
		clock:     clock,
		rule:      rule,
		invert:    cfg.Invert,
		interval:  cfg.Interval,
		callbacks: callback.NewRegistry(cfg.Capacity),
	}
	if err := in.callbacks.AddAll(cfg.Callbacks); err != nil {
		return nil, fmt.Errorf("initial callbacks: %w", err)
	}
	return in, nil
}

// Update performs one tick. It returns false with a nil error when the tick
// was throttled, and false with the read error when the read failed; in both
// cases no state changes and nothing is dispatched.
//
// A panicking callback propagates out of Update after the tick's state has
// been recorded.
func (in *Input[T]) Update() (bool, error) {
	now := in.clock()
	if in.interval > 0 && now-in.lastPoll < in.interval {
		return false, nil
	}

	v, err := in.read()
	if err != nil {
		return false, fmt.Errorf("read input: %w", err)
	}

	first := !in.polled
	in.lastReading = in.reading
	in.reading = v
	in.lastPoll = now
	in.polled = true

	// The first poll has nothing to compare against.
	in.rising = !first && in.reading > in.lastReading
	in.falling = !first && in.reading < in.lastReading

	in.lastDetected = in.detected
	in.detected = in.rule.Match(v) != in.invert
	in.toggled = in.detected && !in.lastDetected
	in.untoggled = !in.detected && in.lastDetected

	if in.toggled {
		in.lastToggleAt = in.toggleAt
		in.toggleAt = now
	}
	if in.untoggled {
		in.lastUntoggleAt = in.untoggleAt
		in.untoggleAt = now
	}

	in.callbacks.Run(in)
	return true, nil
}

// Callbacks returns the registry owned by this input.
func (in *Input[T]) Callbacks() *callback.Registry {
	return in.callbacks
}

// SetReadFunc replaces the read capability.
func (in *Input[T]) SetReadFunc(read ReadFunc[T]) error {
	if read == nil {
		return ErrNilReadFunc
	}
	in.read = read
	return nil
}

// SetRule replaces the detection rule. Takes effect on the next poll.
func (in *Input[T]) SetRule(r Rule[T]) error {
	if err := r.validate(); err != nil {
		return err
	}
	in.rule = r
	return nil
}

// SetExact switches to exact matching on v.
func (in *Input[T]) SetExact(v T) {
	in.rule = Exact(v)
}

// SetRange switches to range matching on [min, max].
func (in *Input[T]) SetRange(min, max T) error {
	r, err := Range(min, max)
	if err != nil {
		return err
	}
	in.rule = r
	return nil
}

func (in *Input[T]) Rule() Rule[T] { return in.rule }

// SetInvert sets whether the rule result is flipped.
func (in *Input[T]) SetInvert(invert bool) { in.invert = invert }

func (in *Input[T]) Inverted() bool { return in.invert }

// SetInterval sets the minimum time between polls.
func (in *Input[T]) SetInterval(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, d)
	}
	in.interval = d
	return nil
}

func (in *Input[T]) Interval() time.Duration { return in.interval }

// Polled reports whether at least one poll has succeeded.
func (in *Input[T]) Polled() bool { return in.polled }

// Reading returns the value from the most recent successful poll.
func (in *Input[T]) Reading() T { return in.reading }

// LastReading returns the value from the poll before that.
func (in *Input[T]) LastReading() T { return in.lastReading }

func (in *Input[T]) RisingReading() bool  { return in.rising }
func (in *Input[T]) FallingReading() bool { return in.falling }

func (in *Input[T]) Detected() bool     { return in.detected }
func (in *Input[T]) Undetected() bool   { return !in.detected }
func (in *Input[T]) LastDetected() bool { return in.lastDetected }

func (in *Input[T]) Toggled() bool   { return in.toggled }
func (in *Input[T]) Untoggled() bool { return in.untoggled }

// ToggleTime returns the clock time of the most recent Toggle.
func (in *Input[T]) ToggleTime() time.Duration { return in.toggleAt }

// UntoggleTime returns the clock time of the most recent Untoggle.
func (in *Input[T]) UntoggleTime() time.Duration { return in.untoggleAt }

// LastToggleTime returns the clock time of the Toggle before the most recent one.
func (in *Input[T]) LastToggleTime() time.Duration { return in.lastToggleAt }

// LastUntoggleTime returns the clock time of the Untoggle before the most recent one.
func (in *Input[T]) LastUntoggleTime() time.Duration { return in.lastUntoggleAt }

// ElapsedDetected returns how long the input has been detected, or 0 when it
// is currently undetected.
func (in *Input[T]) ElapsedDetected() time.Duration {
	if !in.detected {
		return 0
	}
	return in.clock() - in.toggleAt
}

// ElapsedUndetected returns how long the input has been undetected, or 0 when
// it is currently detected. An input that never toggled counts from the clock origin.
func (in *Input[T]) ElapsedUndetected() time.Duration {
	if in.detected {
		return 0
	}
	return in.clock() - in.untoggleAt
}
