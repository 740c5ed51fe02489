package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/flight-monitor/internal/logic"
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	BaseTopic  string // <topic_prefix>/<vehicle_id>
	BufferSize int    // messages held while disconnected
}

// RealClient is a Publisher and Source backed by one broker connection.
// Messages published while disconnected are queued and replayed on reconnect.
type RealClient struct {
	client paho.Client
	base   string
	inbox  inbox

	mu        sync.Mutex
	queue     *ringBuffer
	connected bool
	connects  int
}

// NewRealClient connects to the broker and subscribes to the state and
// command topics. Connection retries continue in the background.
func NewRealClient(o Options) (*RealClient, error) {
	c := &RealClient{
		base:  o.BaseTopic,
		queue: newRingBuffer(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(Topic(o.BaseTopic, TopicSystem), will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	subs := map[string]paho.MessageHandler{
		Topic(c.base, TopicState):   c.handleState,
		Topic(c.base, TopicCommand): c.handleCommand,
	}
	for topic, handler := range subs {
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, token.Error())
		}
	}

	c.mu.Lock()
	c.connected = true
	c.connects++
	reconnect := c.connects > 1
	pending, dropped := c.queue.drain()
	c.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while disconnected", dropped)
	}
	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d queued messages", len(pending))
	}
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnect {
		c.publishNow(client, SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED", Retained: true})
	}
}

// publishNow sends a system event on client directly, bypassing the queue.
func (c *RealClient) publishNow(client paho.Client, event SystemEvent) {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		log.Printf("mqtt: format %s event: %v", event.Event, err)
		return
	}
	token := client.Publish(Topic(c.base, TopicSystem), 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: publish %s event: timeout", event.Event)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish %s event: %v", event.Event, err)
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

func (c *RealClient) handleState(_ paho.Client, msg paho.Message) {
	s, err := ParseState(msg.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring state sample: %v", err)
		return
	}
	c.inbox.setState(s)
}

func (c *RealClient) handleCommand(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring command: %v", err)
		return
	}
	c.inbox.addCommand(cmd)
}

// publish sends a message, or queues it while the connection is down.
func (c *RealClient) publish(suffix string, qos byte, retained bool, payload []byte) error {
	topic := Topic(c.base, suffix)

	c.mu.Lock()
	if !c.connected {
		c.queue.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", suffix)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", suffix, err)
	}
	return nil
}

// PublishAction sends a mode request or notification at QoS 1.
func (c *RealClient) PublishAction(action logic.Action) error {
	suffix, payload, err := FormatAction(action)
	if err != nil {
		return fmt.Errorf("format action: %w", err)
	}
	return c.publish(suffix, 1, false, payload)
}

// PublishSequence sends the counters, retained so late subscribers see them.
func (c *RealClient) PublishSequence(seq logic.SequenceNumbers) error {
	payload, err := FormatSequence(seq)
	if err != nil {
		return fmt.Errorf("format sequence: %w", err)
	}
	return c.publish(TopicSequence, 0, true, payload)
}

// PublishPrearm sends the pre-arm flag.
func (c *RealClient) PublishPrearm(ok bool) error {
	payload, err := FormatPrearm(ok)
	if err != nil {
		return fmt.Errorf("format prearm: %w", err)
	}
	return c.publish(TopicPrearm, 0, false, payload)
}

// PublishWind sends a wind estimate.
func (c *RealClient) PublishWind(w logic.WindState) error {
	payload, err := FormatWind(w)
	if err != nil {
		return fmt.Errorf("format wind: %w", err)
	}
	return c.publish(TopicWind, 0, false, payload)
}

// PublishSystem sends a system lifecycle event at QoS 1.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

// Latest returns the most recent vehicle state sample.
func (c *RealClient) Latest() (logic.VehicleState, bool) {
	return c.inbox.Latest()
}

// DrainCommands returns commands received since the previous call.
func (c *RealClient) DrainCommands() []Command {
	return c.inbox.DrainCommands()
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
