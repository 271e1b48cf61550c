package mqtt

// bufferedMsg is a formatted message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a bounded FIFO of messages held while the broker is unreachable.
// When full, the oldest message is lost. The caller serializes access.
type outbox struct {
	msgs  []bufferedMsg
	first int // index of the oldest message
	n     int

	// lossy is set by the first drop and cleared when the outbox empties, so
	// each outage reports its losses once.
	lossy bool
}

func newOutbox(capacity int) *outbox {
	return &outbox{msgs: make([]bufferedMsg, max(capacity, 1))}
}

func (o *outbox) capacity() int { return len(o.msgs) }

func (o *outbox) len() int { return o.n }

func (o *outbox) slot(i int) int { return (o.first + i) % len(o.msgs) }

// push appends msg, evicting the oldest message when full. It reports true
// for the first eviction of an outage.
func (o *outbox) push(msg bufferedMsg) bool {
	if o.n < len(o.msgs) {
		o.msgs[o.slot(o.n)] = msg
		o.n++
		return false
	}
	o.msgs[o.first] = msg
	o.first = o.slot(1)
	return o.drop()
}

// pushFront returns msg to the head of the queue after a failed delivery.
// When full, msg is itself the oldest and is dropped.
func (o *outbox) pushFront(msg bufferedMsg) bool {
	if o.n == len(o.msgs) {
		return o.drop()
	}
	o.first = (o.first - 1 + len(o.msgs)) % len(o.msgs)
	o.msgs[o.first] = msg
	o.n++
	return false
}

// pop removes and returns the oldest message.
func (o *outbox) pop() (bufferedMsg, bool) {
	if o.n == 0 {
		return bufferedMsg{}, false
	}
	msg := o.msgs[o.first]
	o.msgs[o.first] = bufferedMsg{}
	o.first = o.slot(1)
	o.n--
	if o.n == 0 {
		o.first = 0
		o.lossy = false
	}
	return msg, true
}

func (o *outbox) drop() bool {
	first := !o.lossy
	o.lossy = true
	return first
}
