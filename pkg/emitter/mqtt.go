package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/session"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

//QueueSize is how many messages may wait for the broker before new ones are dropped
const QueueSize = 64

var ErrNotConnected = errors.New("mqtt not connected")

type outgoing struct {
	topic    string
	retained bool
	payload  []byte
}

//Stats counts what the publisher did since it was created
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"` //per topic
	Errors    uint64            `json:"errors"`
	Dropped   uint64            `json:"dropped"` //queue was full
}

//Publisher pushes session events to an MQTT broker. Topics are built under the configured root:
//<root>/state (retained), <root>/<session id>/shots and <root>/<session id>/summary.
//Events coming from Listen are queued and sent by Run, so the session loop never waits for the broker.
type Publisher struct {
	cfg       config.MQTTConfig
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	queue     chan outgoing

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
	dropped   uint64
}

func NewPublisher(cfg config.MQTTConfig) *Publisher {
	return &Publisher{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		queue:     make(chan outgoing, QueueSize),
		published: make(map[string]uint64),
	}
}

//Connect dials the broker, the client reconnects on its own afterwards. When the first connection does not succeed
//the client is stopped, it won't keep retrying in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	broker := p.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Printf("Publisher: Connected to '%s'", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("Publisher: Connection to '%s' lost, will reconnect, got '%v'", broker, err)
	}

	client := p.newClient(opts)
	if err := waitConnect(ctx, client, connectTimeout); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("Connect: Could not connect to '%s', got '%v'", broker, err)
	}

	p.client = client
	return nil
}

//waitConnect starts connecting c and waits for the outcome, timeout or ctx
func waitConnect(ctx context.Context, c mqtt.Client, timeout time.Duration) error {
	token := c.Connect()
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return errors.New("timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

//Disconnect closes the broker connection
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

//Run sends queued messages until ctx is done
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.queue:
			err := p.send(m)
			if err != nil {
				log.Printf("Publisher: Message to '%s' not sent, got '%v'", m.topic, err)
			}
			p.record(m.topic, err)
		}
	}
}

type statePayload struct {
	State    session.State `json:"state"`
	Previous session.State `json:"previous"`
}

//PublishState sends a state change right away and waits for the broker
func (p *Publisher) PublishState(next, prev session.State) error {
	return p.publish(p.topic("state"), true, statePayload{State: next, Previous: prev})
}

func (p *Publisher) PublishShot(r game.ShotRecord) error {
	return p.publish(p.topic(r.SessionID, "shots"), false, r)
}

func (p *Publisher) PublishSummary(s game.SessionSummary) error {
	return p.publish(p.topic(s.SessionID, "summary"), false, s)
}

//Listen queues every state change, shot and summary of o. Run must be running for them to go out.
func (p *Publisher) Listen(o *game.Orchestrator) {
	o.Observe(func(next, prev session.State) {
		p.enqueue(p.topic("state"), true, statePayload{State: next, Previous: prev})
	})
	o.OnShot(func(r game.ShotRecord) {
		p.enqueue(p.topic(r.SessionID, "shots"), false, r)
	})
	o.OnSummary(func(s game.SessionSummary) {
		p.enqueue(p.topic(s.SessionID, "summary"), false, s)
	})
}

func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.client != nil && p.client.IsConnected(),
		Published: published,
		Errors:    p.errors,
		Dropped:   p.dropped,
	}
}

func (p *Publisher) topic(parts ...string) string {
	return strings.Join(append([]string{strings.TrimSuffix(p.cfg.Topic, "/")}, parts...), "/")
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("publish: Could not encode payload, got '%v'", err)
	} else {
		err = p.send(outgoing{topic: topic, retained: retained, payload: payload})
	}
	p.record(topic, err)
	return err
}

//enqueue never blocks, a full queue drops the message
func (p *Publisher) enqueue(topic string, retained bool, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("Publisher: Could not encode '%s' payload, got '%v'", topic, err)
		p.record(topic, err)
		return
	}

	select {
	case p.queue <- outgoing{topic: topic, retained: retained, payload: payload}:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		log.Printf("Publisher: Queue full, dropped message to '%s'", topic)
	}
}

func (p *Publisher) record(topic string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errors++
		return
	}
	p.published[topic]++
}

func (p *Publisher) send(m outgoing) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(m.topic, p.cfg.QoS, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish: Timeout publishing to '%s'", m.topic)
	}
	return token.Error()
}
