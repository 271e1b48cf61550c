// Package config defines the device-input daemon configuration and loads it
// from TOML, YAML or JSON files with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sweeney/device-input/internal/callback"
	"github.com/sweeney/device-input/internal/gpio"
	"github.com/sweeney/device-input/internal/input"
	"github.com/sweeney/device-input/internal/logging"
)

// Environment variables that override file values.
const (
	EnvBroker   = "DEVICE_INPUT_BROKER"
	EnvHTTP     = "DEVICE_INPUT_HTTP"
	EnvLogLevel = "DEVICE_INPUT_LOG_LEVEL"
)

// Special mqtt.ws_broker values.
const (
	WSBrokerFromBroker = "=broker"
	WSBrokerOff        = "off"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the daemon configuration.
type Config struct {
	PollMs          int64         `toml:"poll_ms" yaml:"poll_ms" json:"poll_ms"`
	GroupIntervalMs int64         `toml:"group_interval_ms" yaml:"group_interval_ms" json:"group_interval_ms"`
	HeartbeatMs     int64         `toml:"heartbeat_ms" yaml:"heartbeat_ms" json:"heartbeat_ms"`
	LogLevel        string        `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogDevelopment  bool          `toml:"log_development" yaml:"log_development" json:"log_development"`
	MQTT            MQTTConfig    `toml:"mqtt" yaml:"mqtt" json:"mqtt"`
	HTTP            HTTPConfig    `toml:"http" yaml:"http" json:"http"`
	Inputs          []InputConfig `toml:"inputs" yaml:"inputs" json:"inputs"`
}

// MQTTConfig configures the event publisher.
type MQTTConfig struct {
	Broker      string `toml:"broker" yaml:"broker" json:"broker"`
	ClientID    string `toml:"client_id" yaml:"client_id" json:"client_id"`
	TopicPrefix string `toml:"topic_prefix" yaml:"topic_prefix" json:"topic_prefix"`
	BufferSize  int    `toml:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
	WSBroker    string `toml:"ws_broker" yaml:"ws_broker" json:"ws_broker"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr         string `toml:"addr" yaml:"addr" json:"addr"`
	Username     string `toml:"username" yaml:"username" json:"username"`
	PasswordHash string `toml:"password_hash" yaml:"password_hash" json:"password_hash"`
}

// InputConfig configures one input line and its detection.
type InputConfig struct {
	Name             string       `toml:"name" yaml:"name" json:"name"`
	Backend          string       `toml:"backend" yaml:"backend" json:"backend"`
	Chip             string       `toml:"chip" yaml:"chip" json:"chip"`
	Line             int          `toml:"line" yaml:"line" json:"line"`
	Pin              string       `toml:"pin" yaml:"pin" json:"pin"`
	Pull             string       `toml:"pull" yaml:"pull" json:"pull"`
	ActiveLow        bool         `toml:"active_low" yaml:"active_low" json:"active_low"`
	DetectionExact   *int         `toml:"detection_exact" yaml:"detection_exact" json:"detection_exact"`
	DetectionRange   *RangeConfig `toml:"detection_range" yaml:"detection_range" json:"detection_range"`
	InvertDetected   bool         `toml:"invert_detected" yaml:"invert_detected" json:"invert_detected"`
	UpdateIntervalMs int64        `toml:"update_interval_ms" yaml:"update_interval_ms" json:"update_interval_ms"`
	Publish          []string     `toml:"publish" yaml:"publish" json:"publish"`
	Samples          []int        `toml:"samples" yaml:"samples" json:"samples"`
}

// RangeConfig is an inclusive detection range.
type RangeConfig struct {
	Min int `toml:"min" yaml:"min" json:"min"`
	Max int `toml:"max" yaml:"max" json:"max"`
}

// DefaultConfig returns a configuration with sensible defaults and no inputs.
func DefaultConfig() *Config {
	return &Config{
		PollMs:      50,
		HeartbeatMs: (15 * time.Minute).Milliseconds(),
		LogLevel:    "info",
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "device-input",
			TopicPrefix: "device-input",
			BufferSize:  256,
			WSBroker:    WSBrokerOff,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// ApplyEnvOverrides replaces file values with those set in the environment.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvBroker); v != "" {
		c.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv(EnvHTTP); ok {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks every field and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.PollMs <= 0 {
		add("poll_ms must be positive, got %d", c.PollMs)
	}
	if c.GroupIntervalMs < 0 {
		add("group_interval_ms must not be negative, got %d", c.GroupIntervalMs)
	}
	if c.HeartbeatMs < 0 {
		add("heartbeat_ms must not be negative, got %d", c.HeartbeatMs)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		add("log_level: %v", err)
	}
	if c.MQTT.Broker == "" {
		add("mqtt.broker is required")
	}
	if c.HTTP.Username != "" && c.HTTP.PasswordHash == "" {
		add("http.password_hash is required when http.username is set")
	}
	if len(c.Inputs) == 0 {
		add("at least one input is required")
	}

	seen := make(map[string]bool, len(c.Inputs))
	for i, in := range c.Inputs {
		if in.Name == "" {
			add("inputs[%d]: name is required", i)
		} else if seen[in.Name] {
			add("inputs[%d]: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = true

		if err := in.Validate(); err != nil {
			add("inputs[%d] %q: %w", i, in.Name, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Validate checks one input's settings.
func (ic InputConfig) Validate() error {
	var errs []error
	switch gpio.Backend(ic.Backend) {
	case gpio.BackendGPIOCDev, gpio.BackendPeriph, "":
	case gpio.BackendFake:
		if len(ic.Samples) == 0 {
			errs = append(errs, errors.New("fake backend needs samples"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", ic.Backend))
	}
	if _, err := gpio.ParsePull(ic.Pull); err != nil {
		errs = append(errs, err)
	}
	if ic.Line < 0 {
		errs = append(errs, fmt.Errorf("line must not be negative, got %d", ic.Line))
	}
	if _, err := ic.Detection().Rule(); err != nil {
		errs = append(errs, err)
	}
	if ic.UpdateIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("%w: update_interval_ms %d", input.ErrInvalidInterval, ic.UpdateIntervalMs))
	}
	if _, err := ic.PublishKinds(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LineConfig returns the reader settings for the input.
func (ic InputConfig) LineConfig() gpio.LineConfig {
	pull, _ := gpio.ParsePull(ic.Pull)
	return gpio.LineConfig{
		Backend:   gpio.Backend(ic.Backend),
		Chip:      ic.Chip,
		Line:      ic.Line,
		Pin:       ic.Pin,
		Pull:      pull,
		ActiveLow: ic.ActiveLow,
		Samples:   ic.Samples,
	}
}

// Detection returns the state-machine settings for the input. Clock and
// callbacks are left for the caller.
func (ic InputConfig) Detection() input.Config[int] {
	cfg := input.Config[int]{
		Invert:   ic.InvertDetected,
		Interval: time.Duration(ic.UpdateIntervalMs) * time.Millisecond,
	}
	if ic.DetectionExact != nil {
		v := *ic.DetectionExact
		cfg.Exact = &v
	}
	if ic.DetectionRange != nil {
		cfg.Range = &input.Bounds[int]{Min: ic.DetectionRange.Min, Max: ic.DetectionRange.Max}
	}
	return cfg
}

// PublishKinds returns the event kinds to publish, each once, in first-listed
// order. An empty list publishes toggles only.
func (ic InputConfig) PublishKinds() ([]callback.Kind, error) {
	if len(ic.Publish) == 0 {
		return []callback.Kind{callback.Toggle, callback.Untoggle}, nil
	}
	kinds := make([]callback.Kind, 0, len(ic.Publish))
	seen := make(map[callback.Kind]bool, len(ic.Publish))
	for _, s := range ic.Publish {
		k, err := callback.ParseKind(s)
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// SameLine reports whether two inputs read the same hardware line.
func (ic InputConfig) SameLine(other InputConfig) bool {
	return ic.Backend == other.Backend &&
		ic.Chip == other.Chip &&
		ic.Line == other.Line &&
		ic.Pin == other.Pin &&
		ic.Pull == other.Pull &&
		ic.ActiveLow == other.ActiveLow &&
		equalInts(ic.Samples, other.Samples)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Poll returns the daemon tick interval.
func (c *Config) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// GroupInterval returns the shared group cadence.
func (c *Config) GroupInterval() time.Duration {
	return time.Duration(c.GroupIntervalMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; 0 disables it.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// WSBrokerURL resolves mqtt.ws_broker into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker; "off" or empty disables.
func (c *Config) WSBrokerURL() string {
	ws := strings.TrimSpace(c.MQTT.WSBroker)
	if ws == "" || ws == WSBrokerOff {
		return ""
	}
	if ws != WSBrokerFromBroker {
		return ws
	}
	u, err := url.Parse(c.MQTT.Broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Inputs = make([]InputConfig, len(c.Inputs))
	for i, in := range c.Inputs {
		if in.DetectionExact != nil {
			v := *in.DetectionExact
			in.DetectionExact = &v
		}
		if in.DetectionRange != nil {
			r := *in.DetectionRange
			in.DetectionRange = &r
		}
		in.Publish = append([]string(nil), in.Publish...)
		in.Samples = append([]int(nil), in.Samples...)
		out.Inputs[i] = in
	}
	return &out
}
