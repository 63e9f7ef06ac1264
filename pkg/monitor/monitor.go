// Package monitor prints the radio traffic and telemetry seen on MQTT.
package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/lst.go/pkg/mqtt"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/radio"
	"github.com/robotalks/lst.go/pkg/radio/mqttair"
	"github.com/robotalks/lst.go/pkg/telemetry"
)

// Monitor subscribes to everything a node may publish.
type Monitor struct {
	Queue *mqtt.Queue
	Out   io.Writer
	Codec radio.Codec
	// Now stamps every line, time.Now if nil.
	Now func() time.Time

	lock sync.Mutex
	msg  [radio.MaxMessageSize]byte
	subs []*mqtt.Subscription
}

// New creates a Monitor.
func New(q *mqtt.Queue, out io.Writer) *Monitor {
	return &Monitor{Queue: q, Out: out}
}

// Start subscribes to radio traffic and telemetry.
func (m *Monitor) Start() {
	m.subs = append(m.subs,
		m.Queue.Sub(mqttair.TopicRoot+"/#", m.air),
		telemetry.Subscribe(m.Queue, m.telemetry),
	)
}

// Stop unsubscribes.
func (m *Monitor) Stop() error {
	var errs error
	for _, sub := range m.subs {
		if err := sub.Close(); err != nil && errs == nil {
			errs = err
		}
	}
	m.subs = nil
	return errs
}

func (m *Monitor) printf(format string, args ...interface{}) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	fmt.Fprintf(m.Out, "%s "+format+"\n", append([]interface{}{now().Format("15:04:05.000")}, args...)...)
}

func (m *Monitor) air(topic string, payload []byte) {
	channel, sender, ok := mqttair.ParseTopic(topic)
	if !ok || len(payload) < 1 {
		return
	}
	mode := radio.Mode(payload[0])
	m.lock.Lock()
	n, uartSel, err := m.Codec.Decode(payload[1:], m.msg[:])
	var msg *protocol.Message
	if err == nil {
		msg, err = protocol.ParseMessage(append([]byte(nil), m.msg[:n]...))
	}
	m.lock.Unlock()
	if err != nil {
		m.printf("AIR %s %s mode=%s bad packet: %v", channel, sender, mode, err)
		return
	}
	m.printf("AIR %s %s mode=%s uart=%d %s", channel, sender, mode, uartSel, msg)
}

func (m *Monitor) telemetry(hwid string, s *structpb.Struct) {
	js, err := telemetry.JSON(s)
	if err != nil {
		m.printf("TELEM %s: %v", hwid, err)
		return
	}
	m.printf("TELEM %s %s", hwid, js)
}
