package mqtt

import (
	"sync"
	"time"

	"github.com/acomagu/bufpipe"
)

// DefaultPublishTimeout bounds how long a Stream write waits for the broker.
const DefaultPublishTimeout = 5 * time.Second

// SerialTopics gives the topics of the serial line name. The device side
// subscribes to what the host side publishes and the other way around.
func SerialTopics(name string, device bool) (sub, pub string) {
	down, up := "serial/"+name+"/down", "serial/"+name+"/up"
	if device {
		return down, up
	}
	return up, down
}

// Stream is a byte stream carried over a pair of topics.
type Stream struct {
	Queue          *Queue
	SubTopic       string
	PubTopic       string
	PublishTimeout time.Duration

	reader    *bufpipe.PipeReader
	writer    *bufpipe.PipeWriter
	sub       *Subscription
	closeOnce sync.Once
}

// NewStream creates a Stream receiving from sub and sending to pub.
func NewStream(q *Queue, sub, pub string) *Stream {
	r, w := bufpipe.New(nil)
	s := &Stream{
		Queue:          q,
		SubTopic:       sub,
		PubTopic:       pub,
		PublishTimeout: DefaultPublishTimeout,
		reader:         r,
		writer:         w,
	}
	s.sub = q.Sub(sub, s.handleMsg)
	return s
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Write implements io.Writer. Every write is one publication.
func (s *Stream) Write(p []byte) (int, error) {
	token := s.Queue.Pub(s.PubTopic, append([]byte(nil), p...))
	if !token.WaitTimeout(s.PublishTimeout) {
		return 0, ErrTimeout
	}
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close unsubscribes, pending reads see io.EOF.
func (s *Stream) Close() (err error) {
	s.closeOnce.Do(func() {
		err = s.sub.Close()
		s.writer.Close()
	})
	return
}

func (s *Stream) handleMsg(_ string, payload []byte) {
	s.writer.Write(payload)
}
