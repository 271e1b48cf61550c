package mqtt

import (
	"testing"
)

func pushN(o *outbox, from, n int) (dropped int) {
	for i := from; i < from+n; i++ {
		if o.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}}) {
			dropped++
		}
	}
	return dropped
}

// drain pops everything and returns the first payload byte of each message.
func drain(o *outbox) []byte {
	var out []byte
	for {
		m, ok := o.pop()
		if !ok {
			return out
		}
		out = append(out, m.payload[0])
	}
}

func TestOutboxPopEmpty(t *testing.T) {
	o := newOutbox(4)
	if _, ok := o.pop(); ok {
		t.Error("pop of empty outbox reported a message")
	}
}

func TestOutboxOrder(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   int
		want     []byte
	}{
		{"partial", 8, 3, []byte{0, 1, 2}},
		{"exactly full", 4, 4, []byte{0, 1, 2, 3}},
		{"overflow keeps newest", 4, 7, []byte{3, 4, 5, 6}},
		{"capacity clamps to one", 0, 3, []byte{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOutbox(tt.capacity)
			pushN(o, 0, tt.pushed)
			got := drain(o)
			if string(got) != string(tt.want) {
				t.Errorf("drained %v, want %v", got, tt.want)
			}
			if o.len() != 0 {
				t.Errorf("len after drain = %d, want 0", o.len())
			}
		})
	}
}

func TestOutboxReportsFirstDropPerOutage(t *testing.T) {
	o := newOutbox(2)
	if d := pushN(o, 0, 2); d != 0 {
		t.Fatalf("dropped %d while filling, want 0", d)
	}
	if d := pushN(o, 2, 3); d != 1 {
		t.Errorf("reported %d drops, want 1 (first overflow only)", d)
	}

	drain(o)
	pushN(o, 10, 2)
	if d := pushN(o, 12, 1); d != 1 {
		t.Errorf("after emptying reported %d drops, want 1", d)
	}
}

func TestOutboxPushFront(t *testing.T) {
	o := newOutbox(4)
	pushN(o, 1, 2)

	m, _ := o.pop()
	if o.pushFront(m) {
		t.Error("pushFront with room reported a drop")
	}
	pushN(o, 3, 1)

	if got := drain(o); string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("drained %v, want [1 2 3]", got)
	}
}

func TestOutboxPushFrontWhenFullDropsReturned(t *testing.T) {
	o := newOutbox(2)
	pushN(o, 0, 1)
	m, _ := o.pop()
	pushN(o, 1, 2)

	if !o.pushFront(m) {
		t.Error("expected pushFront into a full outbox to report a drop")
	}
	if got := drain(o); string(got) != string([]byte{1, 2}) {
		t.Errorf("drained %v, want [1 2]", got)
	}
}

func TestOutboxWrapsAround(t *testing.T) {
	o := newOutbox(3)
	pushN(o, 0, 3)
	o.pop()
	pushN(o, 3, 1)

	if o.len() != 3 {
		t.Fatalf("len = %d, want 3", o.len())
	}
	if got := drain(o); string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("drained %v after wrap", got)
	}
}

func TestOutboxKeepsMessageFields(t *testing.T) {
	o := newOutbox(3)
	o.push(bufferedMsg{
		topic:    SystemTopic("lab"),
		payload:  []byte(`{"system":{}}`),
		qos:      1,
		retained: true,
	})

	m, ok := o.pop()
	if !ok {
		t.Fatal("expected one message")
	}
	if m.topic != "lab/system" || string(m.payload) != `{"system":{}}` || m.qos != 1 || !m.retained {
		t.Errorf("message fields not preserved: %+v", m)
	}
}
