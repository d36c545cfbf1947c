// Package mqtttest provides an in-memory MQTT client for tests.
package mqtttest

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published is one message handed to Publish.
type Published struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// Client routes publishes and deliveries to subscribers in-process.
// Topics are matched exactly; wildcards are not supported.
type Client struct {
	mu         sync.Mutex
	handlers   map[string]mqtt.MessageHandler
	published  []Published
	subscribed chan string
}

var _ mqtt.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		handlers:   make(map[string]mqtt.MessageHandler),
		subscribed: make(chan string, 16),
	}
}

// Subscribed receives each topic once its subscription is in place.
func (c *Client) Subscribed() <-chan string {
	return c.subscribed
}

// Deliver calls the handler subscribed to topic, if any, and reports
// whether there was one.
func (c *Client) Deliver(topic string, payload []byte, retained bool) bool {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()

	if h == nil {
		return false
	}
	h(c, &message{topic: topic, payload: payload, retained: retained})
	return true
}

// Messages returns everything published so far.
func (c *Client) Messages() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// HasSubscriber reports whether topic currently has a handler.
func (c *Client) HasSubscriber(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[topic] != nil
}

func (c *Client) IsConnected() bool      { return true }
func (c *Client) IsConnectionOpen() bool { return true }
func (c *Client) Connect() mqtt.Token    { return done(nil) }
func (c *Client) Disconnect(uint)        {}

func (c *Client) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	default:
		return done(fmt.Errorf("unsupported payload type %T", payload))
	}

	c.mu.Lock()
	c.published = append(c.published, Published{Topic: topic, Retained: retained, Payload: data})
	c.mu.Unlock()
	return done(nil)
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()

	select {
	case c.subscribed <- topic:
	default:
	}
	return done(nil)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, callback)
	}
	return done(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return done(nil)
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.Subscribe(topic, 0, callback)
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.NewOptionsReader(mqtt.NewClientOptions())
}

type token struct {
	err error
	ch  chan struct{}
}

func done(err error) *token {
	t := &token{err: err, ch: make(chan struct{})}
	close(t.ch)
	return t
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.ch }
func (t *token) Error() error                   { return t.err }

type message struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 0 }
func (m *message) Retained() bool    { return m.retained }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
