// Package status provides a thread-safe status tracker for the device-input daemon.
// The polling loop writes to it; HTTP handlers and heartbeats read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/device-input/internal/callback"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	EventTopic  string
	ConfigPath  string
}

// InputInfo describes a configured input.
type InputInfo struct {
	Name    string
	Backend string
	Rule    string // human-readable detection rule, e.g. "exact 1" or "range [2, 5]"
	Invert  bool
}

// InputState is the observed state of one input.
type InputState struct {
	InputInfo
	Polled     bool
	Reading    int
	Detected   bool
	LastEvent  callback.Kind
	LastToggle time.Time
	Counts     map[callback.Kind]int
}

// Snapshot is a point-in-time view of daemon state.
// It is a deep copy, safe to use after the lock is released.
type Snapshot struct {
	Inputs        []InputState
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
	Reloads       int
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every input has been polled at least once.
func (s Snapshot) Ready() bool {
	for _, in := range s.Inputs {
		if !in.Polled {
			return false
		}
	}
	return len(s.Inputs) > 0
}

// Input returns the state of the named input.
func (s Snapshot) Input(name string) (InputState, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputState{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
	now   func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		index: map[string]int{},
		now:   time.Now,
	}
}

// SetInputs replaces the tracked inputs. Inputs whose name survives keep
// their observed state and counts; new inputs start unpolled.
func (t *Tracker) SetInputs(infos []InputInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	inputs := make([]InputState, len(infos))
	index := make(map[string]int, len(infos))
	for i, info := range infos {
		if j, ok := t.index[info.Name]; ok {
			inputs[i] = t.snap.Inputs[j]
			inputs[i].InputInfo = info
		} else {
			inputs[i] = InputState{InputInfo: info, Counts: map[callback.Kind]int{}}
		}
		index[info.Name] = i
	}
	t.snap.Inputs = inputs
	t.index = index
}

// Observe records the latest reading and detection of an input after a poll.
func (t *Tracker) Observe(name string, reading int, detected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[name]
	if !ok {
		return
	}
	in := &t.snap.Inputs[i]
	in.Polled = true
	in.Reading = reading
	in.Detected = detected
}

// Record counts an event fired by an input.
func (t *Tracker) Record(name string, kind callback.Kind, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[name]
	if !ok {
		return
	}
	in := &t.snap.Inputs[i]
	in.Counts[kind]++
	in.LastEvent = kind
	if kind == callback.Toggle || kind == callback.Untoggle {
		in.LastToggle = at
	}
}

// SetConfig replaces the displayed configuration and counts a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.snap.Reloads++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Inputs = make([]InputState, len(t.snap.Inputs))
	for i, in := range t.snap.Inputs {
		counts := make(map[callback.Kind]int, len(in.Counts))
		for k, v := range in.Counts {
			counts[k] = v
		}
		in.Counts = counts
		s.Inputs[i] = in
	}
	if t.snap.Network != nil {
		n := *t.snap.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
