package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/lst.go/pkg/mqtt"
	"github.com/robotalks/lst.go/pkg/protocol"
)

// Defaults.
const (
	DefaultInterval       = 10 * time.Second
	DefaultPublishTimeout = time.Second
	topicBase             = "telemetry/"
)

// Topic is where the telemetry of hwid is published.
func Topic(hwid protocol.HWID) string {
	return topicBase + hwid.String()
}

// Source provides the latest snapshot.
type Source func() Snapshot

// Publisher publishes snapshots periodically.
type Publisher struct {
	Queue          *mqtt.Queue
	Source         Source
	Interval       time.Duration
	PublishTimeout time.Duration
}

// NewPublisher creates a Publisher.
func NewPublisher(q *mqtt.Queue, src Source) *Publisher {
	return &Publisher{
		Queue:          q,
		Source:         src,
		Interval:       DefaultInterval,
		PublishTimeout: DefaultPublishTimeout,
	}
}

// Publish publishes the current snapshot once.
func (p *Publisher) Publish() error {
	s := p.Source()
	data, err := s.Encode()
	if err != nil {
		return err
	}
	token := p.Queue.Pub(Topic(s.HWID), data)
	if !token.WaitTimeout(p.PublishTimeout) {
		return mqtt.ErrTimeout
	}
	return token.Error()
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Publish(); err != nil {
				glog.Warningf("telemetry: publish: %v", err)
			}
		}
	}
}

// Handler receives decoded snapshots.
type Handler func(hwid string, s *structpb.Struct)

// Subscribe delivers the snapshots of every node to h.
func Subscribe(q *mqtt.Queue, h Handler) *mqtt.Subscription {
	return q.Sub(topicBase+"+", func(topic string, payload []byte) {
		s, err := Decode(payload)
		if err != nil {
			glog.Warningf("telemetry: %s: %v", topic, err)
			return
		}
		h(strings.TrimPrefix(topic, topicBase), s)
	})
}
