package mqtt

import (
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Loopback is an in-process paho.Client. Every publication is delivered
// back to the Queue it is bound to, so nodes sharing one Queue hear each
// other without a broker.
type Loopback struct {
	// Client is only present to satisfy paho.Client, methods not
	// overridden here must not be called.
	paho.Client

	lock      sync.Mutex
	queue     *Queue
	connected bool
	published []string
}

// NewLoopbackQueue creates a Queue backed by a Loopback client.
func NewLoopbackQueue(topicPrefix string) *Queue {
	lb := &Loopback{}
	q := &Queue{Client: lb, TopicPrefix: topicPrefix}
	lb.queue = q
	return q
}

// IsConnected implements paho.Client.
func (c *Loopback) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

// IsConnectionOpen implements paho.Client.
func (c *Loopback) IsConnectionOpen() bool {
	return c.IsConnected()
}

// Connect implements paho.Client.
func (c *Loopback) Connect() paho.Token {
	c.lock.Lock()
	c.connected = true
	c.lock.Unlock()
	return &paho.DummyToken{}
}

// Disconnect implements paho.Client.
func (c *Loopback) Disconnect(quiesce uint) {
	c.lock.Lock()
	c.connected = false
	c.lock.Unlock()
}

// Publish implements paho.Client.
func (c *Loopback) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}
	c.lock.Lock()
	c.published = append(c.published, topic)
	c.lock.Unlock()
	c.queue.Deliver(topic, data)
	return &paho.DummyToken{}
}

// Subscribe implements paho.Client.
func (c *Loopback) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	return &paho.DummyToken{}
}

// SubscribeMultiple implements paho.Client.
func (c *Loopback) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	return &paho.DummyToken{}
}

// Unsubscribe implements paho.Client.
func (c *Loopback) Unsubscribe(topics ...string) paho.Token {
	return &paho.DummyToken{}
}

// Published lists the topics published so far.
func (c *Loopback) Published() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.published...)
}
