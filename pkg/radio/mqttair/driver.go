// Package mqttair carries radio packets over MQTT so nodes in different
// processes share one medium.
//
// Each transmission is published to air/<channel>/<name> as the mode byte
// followed by the raw packet. A driver listens on air/<channel>/+ and
// ignores its own publications.
package mqttair

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/mqtt"
	"github.com/robotalks/lst.go/pkg/radio"
)

// DefaultChannel is the channel used when none is given.
const DefaultChannel = "ch0"

// TopicRoot is the first topic level of all radio traffic.
const TopicRoot = "air"

// Driver implements radio.Driver on an mqtt.Queue.
type Driver struct {
	Queue   *mqtt.Queue
	Name    string
	Channel string
	Quality radio.LinkQuality
	// PublishTimeout bounds how long Transmit waits for the broker.
	PublishTimeout time.Duration

	lock sync.Mutex
	recv radio.Receiver
	mode radio.Mode
	sub  *mqtt.Subscription
}

// New creates a Driver.
func New(q *mqtt.Queue, name string) *Driver {
	return &Driver{
		Queue:          q,
		Name:           name,
		Channel:        DefaultChannel,
		Quality:        radio.LinkQuality{RSSI: -70, LQI: 30, CarrierSense: true},
		PublishTimeout: time.Second,
	}
}

// Topic is where the driver publishes.
func (d *Driver) Topic() string {
	return TopicRoot + "/" + d.Channel + "/" + d.Name
}

// ChannelTopic matches all transmissions on the channel.
func (d *Driver) ChannelTopic() string {
	return TopicRoot + "/" + d.Channel + "/+"
}

// Attach implements radio.Driver.
func (d *Driver) Attach(r radio.Receiver) {
	d.lock.Lock()
	d.recv = r
	d.lock.Unlock()
}

// Listen implements radio.Driver. The first call subscribes to the channel.
func (d *Driver) Listen(mode radio.Mode) error {
	d.lock.Lock()
	d.mode = mode
	subscribed := d.sub != nil
	if !subscribed {
		d.sub = d.Queue.Sub(d.ChannelTopic(), d.onPacket)
	}
	d.lock.Unlock()
	return nil
}

// Transmit implements radio.Driver.
func (d *Driver) Transmit(ctx context.Context, pkt []byte, mode radio.Mode, at time.Time) error {
	if !at.IsZero() {
		if wait := time.Until(at); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	payload := make([]byte, len(pkt)+1)
	payload[0] = byte(mode)
	copy(payload[1:], pkt)
	token := d.Queue.Pub(d.Topic(), payload)
	if !token.WaitTimeout(d.PublishTimeout) {
		return mqtt.ErrTimeout
	}
	return token.Error()
}

// Close unsubscribes from the channel.
func (d *Driver) Close() error {
	d.lock.Lock()
	sub := d.sub
	d.sub = nil
	d.lock.Unlock()
	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (d *Driver) onPacket(topic string, payload []byte) {
	if topic == d.Topic() || len(payload) < 1 {
		return
	}
	d.lock.Lock()
	recv, mode := d.recv, d.mode
	d.lock.Unlock()
	if recv == nil {
		return
	}
	if txMode := radio.Mode(payload[0]); txMode != mode {
		glog.V(3).Infof("mqttair: %s hears %s packet while in %s", d.Name, txMode, mode)
	}
	recv.ReceivePacket(payload[1:], d.Quality, time.Now())
}

// ParseTopic extracts channel and sender from a radio topic.
func ParseTopic(topic string) (channel, sender string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicRoot {
		return "", "", false
	}
	return parts[1], parts[2], true
}
