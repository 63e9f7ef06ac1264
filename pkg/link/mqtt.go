package link

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/robotalks/lst.go/pkg/mqtt"
)

// ConnectTimeout bounds the broker connection of an MQTT serial line.
const ConnectTimeout = 10 * time.Second

type mqttSerial struct {
	*mqtt.Stream
	queue *mqtt.Queue
}

func (s *mqttSerial) Close() error {
	err := s.Stream.Close()
	s.queue.Close()
	return err
}

// parseMQTTSerial splits mqtt-serial://host:port/prefix/NAME into the
// broker URL and the line name.
func parseMQTTSerial(u *url.URL) (brokerURL, name string, err error) {
	dir, name := path.Split(strings.TrimSuffix(u.Path, "/"))
	if name == "" {
		return "", "", fmt.Errorf("serial line name missing in %q", u.String())
	}
	broker := url.URL{Scheme: "mqtt", User: u.User, Host: u.Host, Path: dir, RawQuery: u.RawQuery}
	return broker.String(), name, nil
}

// openMQTTSerial opens a serial line through the broker, the device side
// when listen is set.
func openMQTTSerial(u *url.URL, listen bool) (io.ReadWriteCloser, error) {
	brokerURL, name, err := parseMQTTSerial(u)
	if err != nil {
		return nil, err
	}
	q, err := mqtt.NewQueueFromURL(brokerURL, "")
	if err != nil {
		return nil, err
	}
	if err := q.ConnectWait(ConnectTimeout); err != nil {
		return nil, err
	}
	sub, pub := mqtt.SerialTopics(name, listen)
	return &mqttSerial{Stream: mqtt.NewStream(q, sub, pub), queue: q}, nil
}
