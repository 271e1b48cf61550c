package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DefaultBufferSize is how many messages are held while the broker is unreachable.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are queued and replayed, oldest first, on reconnect. Replay and
// live publishes share one lock, so nothing overtakes a queued message.
type RealPublisher struct {
	client      paho.Client
	topic       string
	systemTopic string
	logger      *zap.SugaredLogger

	// wire is held for every broker publish and for a whole replay.
	wire sync.Mutex

	mu     sync.Mutex
	outbox *outbox
}

func newRealPublisher(opts Options, logger *zap.SugaredLogger) *RealPublisher {
	return &RealPublisher{
		topic:       EventTopic(opts.TopicPrefix),
		systemTopic: SystemTopic(opts.TopicPrefix),
		logger:      logger.Named("mqtt"),
		outbox:      newOutbox(opts.BufferSize),
	}
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// If the broker is not reachable within the connect timeout the publisher is
// still returned; it keeps retrying in the background and queues meanwhile.
func NewRealPublisher(opts Options, logger *zap.SugaredLogger) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "device-input"
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := newRealPublisher(opts, logger)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warnw("connection lost", "error", err)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.logger.Warnw("broker not reachable yet, buffering", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends an input event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once)
	return p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.logger.Warnw("closing with undelivered messages", "count", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// send publishes msg, or queues it behind earlier messages that have not
// reached the broker yet.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.wire.Lock()
	defer p.wire.Unlock()

	p.mu.Lock()
	backlog := p.outbox.len() > 0
	if backlog || !p.client.IsConnectionOpen() {
		p.queue(p.outbox.push, msg)
		p.mu.Unlock()
		if backlog {
			p.replay()
		}
		return nil
	}
	p.mu.Unlock()

	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// queue stores msg with add. Callers hold p.mu.
func (p *RealPublisher) queue(add func(bufferedMsg) bool, msg bufferedMsg) {
	if add(msg) {
		p.logger.Warnw("buffer full, dropping oldest", "capacity", p.outbox.capacity())
	}
}

// flush runs on paho's connect goroutine.
func (p *RealPublisher) flush() {
	p.wire.Lock()
	defer p.wire.Unlock()

	if n := p.Buffered(); n > 0 {
		p.logger.Infow("connected, replaying buffered messages", "count", n)
	} else {
		p.logger.Infow("connected")
	}
	p.replay()
}

// replay delivers queued messages in order until the outbox is empty or a
// publish fails; a failed message goes back to the head. Callers hold p.wire.
func (p *RealPublisher) replay() {
	for p.client.IsConnectionOpen() {
		p.mu.Lock()
		msg, ok := p.outbox.pop()
		p.mu.Unlock()
		if !ok {
			return
		}
		if err := p.publish(msg); err != nil {
			p.logger.Warnw("replay failed", "topic", msg.topic, "error", err)
			p.mu.Lock()
			p.queue(p.outbox.pushFront, msg)
			p.mu.Unlock()
			return
		}
	}
}
