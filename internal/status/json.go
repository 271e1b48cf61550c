package status

import (
	"encoding/json"
	"strings"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Reloads       int          `json:"reloads"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Inputs        []InputJSON  `json:"inputs"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// InputJSON is the JSON representation of one input.
type InputJSON struct {
	Name       string         `json:"name"`
	Backend    string         `json:"backend"`
	Rule       string         `json:"rule"`
	Invert     bool           `json:"invert,omitempty"`
	State      string         `json:"state"`
	Reading    *int           `json:"reading"`
	LastEvent  string         `json:"last_event,omitempty"`
	LastToggle string         `json:"last_toggle,omitempty"`
	Counts     map[string]int `json:"event_counts"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	EventTopic  string `json:"event_topic"`
	ConfigPath  string `json:"config_path,omitempty"`
}

// StateLabel returns DETECTED, UNDETECTED or UNKNOWN (never polled).
func (s InputState) StateLabel() string {
	switch {
	case !s.Polled:
		return "UNKNOWN"
	case s.Detected:
		return "DETECTED"
	default:
		return "UNDETECTED"
	}
}

func buildInput(in InputState) InputJSON {
	out := InputJSON{
		Name:      in.Name,
		Backend:   in.Backend,
		Rule:      in.Rule,
		Invert:    in.Invert,
		State:     in.StateLabel(),
		LastEvent: string(in.LastEvent),
		Counts:    make(map[string]int, len(in.Counts)),
	}
	if in.Polled {
		r := in.Reading
		out.Reading = &r
	}
	if !in.LastToggle.IsZero() {
		out.LastToggle = in.LastToggle.UTC().Format(time.RFC3339)
	}
	for kind, n := range in.Counts {
		out.Counts[strings.ToLower(string(kind))] = n
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Reloads:       snap.Reloads,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Inputs:        make([]InputJSON, 0, len(snap.Inputs)),
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			EventTopic:  snap.Config.EventTopic,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}
	for _, in := range snap.Inputs {
		inner.Inputs = append(inner.Inputs, buildInput(in))
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
