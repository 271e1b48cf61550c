package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/device-input/internal/callback"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestTracker() *Tracker {
	tr := NewTracker(start, Config{PollMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"})
	tr.now = func() time.Time { return start.Add(90 * time.Second) }
	tr.SetInputs([]InputInfo{
		{Name: "door", Backend: "fake", Rule: "exact 1"},
		{Name: "level", Backend: "fake", Rule: "range [2, 5]", Invert: true},
	})
	return tr
}

func TestTrackerInitialState(t *testing.T) {
	tr := newTestTracker()
	snap := tr.Snapshot()

	if len(snap.Inputs) != 2 {
		t.Fatalf("inputs: got %d, want 2", len(snap.Inputs))
	}
	if snap.Ready() {
		t.Error("expected not ready before any poll")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if got := snap.Uptime(); got != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", got)
	}
	if in, _ := snap.Input("door"); in.StateLabel() != "UNKNOWN" {
		t.Errorf("state before poll: got %q, want UNKNOWN", in.StateLabel())
	}
}

func TestTrackerObserveAndRecord(t *testing.T) {
	tr := newTestTracker()
	at := start.Add(time.Second)

	tr.Observe("door", 1, true)
	tr.Record("door", callback.Detected, at)
	tr.Record("door", callback.Toggle, at)
	tr.Record("door", callback.Detected, at.Add(time.Second))
	tr.Observe("level", 7, false)
	tr.Observe("missing", 1, true)
	tr.Record("missing", callback.Toggle, at)

	snap := tr.Snapshot()
	if !snap.Ready() {
		t.Error("expected ready after every input polled")
	}

	door, ok := snap.Input("door")
	if !ok {
		t.Fatal("door not tracked")
	}
	if door.Reading != 1 || !door.Detected || door.StateLabel() != "DETECTED" {
		t.Errorf("door state: %+v", door)
	}
	if door.Counts[callback.Detected] != 2 || door.Counts[callback.Toggle] != 1 {
		t.Errorf("door counts: %v", door.Counts)
	}
	if door.LastEvent != callback.Detected {
		t.Errorf("LastEvent: got %q", door.LastEvent)
	}
	if !door.LastToggle.Equal(at) {
		t.Errorf("LastToggle: got %v, want %v", door.LastToggle, at)
	}

	if _, ok := snap.Input("missing"); ok {
		t.Error("unknown names must be ignored")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tr := newTestTracker()
	tr.SetNetwork(&NetworkInfo{IP: "10.0.0.2"})
	tr.Record("door", callback.Toggle, start)

	snap := tr.Snapshot()
	snap.Inputs[0].Counts[callback.Toggle] = 99
	snap.Network.IP = "mutated"

	again := tr.Snapshot()
	if again.Inputs[0].Counts[callback.Toggle] != 1 {
		t.Error("snapshot counts alias tracker state")
	}
	if again.Network.IP != "10.0.0.2" {
		t.Error("snapshot network aliases tracker state")
	}
}

func TestSetInputsKeepsSurvivors(t *testing.T) {
	tr := newTestTracker()
	tr.Observe("door", 1, true)
	tr.Record("door", callback.Toggle, start)

	tr.SetInputs([]InputInfo{
		{Name: "window", Backend: "gpiocdev"},
		{Name: "door", Backend: "fake", Rule: "exact 0"},
	})

	snap := tr.Snapshot()
	if len(snap.Inputs) != 2 || snap.Inputs[0].Name != "window" {
		t.Fatalf("inputs not replaced in order: %+v", snap.Inputs)
	}
	door, _ := snap.Input("door")
	if !door.Polled || door.Counts[callback.Toggle] != 1 {
		t.Errorf("door lost its state across SetInputs: %+v", door)
	}
	if door.Rule != "exact 0" {
		t.Errorf("door info not refreshed: %q", door.Rule)
	}
	window, _ := snap.Input("window")
	if window.Polled || window.Counts == nil {
		t.Errorf("new input should start unpolled with counts: %+v", window)
	}
}

func TestSetConfigCountsReloads(t *testing.T) {
	tr := newTestTracker()
	tr.SetConfig(Config{PollMs: 10})
	tr.SetConfig(Config{PollMs: 20})

	snap := tr.Snapshot()
	if snap.Reloads != 2 || snap.Config.PollMs != 20 {
		t.Errorf("got reloads=%d poll=%d", snap.Reloads, snap.Config.PollMs)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := newTestTracker()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Observe("door", j, j%2 == 0)
				tr.Record("door", callback.RisingReading, start)
				tr.SetMQTTConnected(j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	door, _ := tr.Snapshot().Input("door")
	if door.Counts[callback.RisingReading] != 400 {
		t.Errorf("counts: got %d, want 400", door.Counts[callback.RisingReading])
	}
}

func TestHeartbeat(t *testing.T) {
	hb := NewHeartbeat(start)

	if hb.Check(start.Add(time.Hour), 0) != nil {
		t.Error("interval 0 disables heartbeat")
	}
	if hb.Check(start.Add(59*time.Second), time.Minute) != nil {
		t.Error("heartbeat before interval elapsed")
	}

	got := hb.Check(start.Add(time.Minute), time.Minute)
	if got == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if got.Uptime != time.Minute || !got.Timestamp.Equal(start.Add(time.Minute)) {
		t.Errorf("heartbeat data: %+v", got)
	}

	if hb.Check(start.Add(90*time.Second), time.Minute) != nil {
		t.Error("interval restarts after each heartbeat")
	}
	if got := hb.Check(start.Add(2*time.Minute), time.Minute); got == nil || got.Uptime != 2*time.Minute {
		t.Errorf("second heartbeat: %+v", got)
	}
}

func TestFormatJSON(t *testing.T) {
	tr := newTestTracker()
	tr.SetMQTTConnected(true)
	tr.Observe("door", 1, true)
	tr.Record("door", callback.Toggle, start.Add(time.Second))

	var got StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := got.Status

	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON must not carry event/reason")
	}
	if s.Ready {
		t.Error("level never polled, expected ready=false")
	}
	if s.UptimeSeconds != 90 || s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("uptime/start: %d %s", s.UptimeSeconds, s.StartTime)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt: %+v", s.MQTT)
	}
	if len(s.Inputs) != 2 {
		t.Fatalf("inputs: %d", len(s.Inputs))
	}

	door := s.Inputs[0]
	if door.State != "DETECTED" || door.Reading == nil || *door.Reading != 1 {
		t.Errorf("door: %+v", door)
	}
	if door.Counts["toggle"] != 1 || door.LastToggle != "2026-01-01T00:00:01Z" {
		t.Errorf("door counts/toggle: %+v", door)
	}

	level := s.Inputs[1]
	if level.State != "UNKNOWN" || level.Reading != nil || !level.Invert {
		t.Errorf("level: %+v", level)
	}
	if s.Network != nil {
		t.Error("network should be omitted when unset")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := newTestTracker()
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "10.0.0.2", SSID: "lab"})

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT status event should be compact")
	}

	var got StatusJSON
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status.Event != "SHUTDOWN" || got.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: %q %q", got.Status.Event, got.Status.Reason)
	}
	if got.Status.Network == nil || got.Status.Network.SSID != "lab" {
		t.Errorf("network: %+v", got.Status.Network)
	}
}
