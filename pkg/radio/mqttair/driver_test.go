package mqttair

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/mqtt"
	"github.com/robotalks/lst.go/pkg/radio"
)

func TestDriverSharedMedium(t *testing.T) {
	q := mqtt.NewLoopbackQueue("lst/")
	a := radio.New(New(q, "a"))
	b := radio.New(New(q, "b"))
	require.NoError(t, a.Listen())
	require.NoError(t, b.Listen())

	msg := []byte{0x34, 0x12, 0x01, 0x00, 0x01, 0x17}
	require.NoError(t, a.Send(context.Background(), msg, 0))

	buf := make([]byte, radio.MaxMessageSize)
	n, _ := a.GetMessage(buf)
	require.Zero(t, n, "sender must not hear itself")
	n, _ = b.GetMessage(buf)
	require.Equal(t, msg, buf[:n])
	require.EqualValues(t, -70, b.Stats().Last.RSSI)
}

func TestDriverClose(t *testing.T) {
	q := mqtt.NewLoopbackQueue("")
	d := New(q, "a")
	var got int
	d.Attach(receiverFunc(func([]byte) { got++ }))
	require.NoError(t, d.Listen(radio.ModeDefault))
	q.Pub("air/ch0/b", []byte{0, 1, 2})
	require.Equal(t, 1, got)
	require.NoError(t, d.Close())
	q.Pub("air/ch0/b", []byte{0, 1, 2})
	require.Equal(t, 1, got)
}

func TestParseTopic(t *testing.T) {
	testCases := []struct {
		topic, channel, sender string
		ok                     bool
	}{
		{"air/ch0/node-1", "ch0", "node-1", true},
		{"air/ch0", "", "", false},
		{"telemetry/ch0/x", "", "", false},
		{"air/ch0/a/b", "", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.topic, func(t *testing.T) {
			ch, sender, ok := ParseTopic(tc.topic)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.channel, ch)
			require.Equal(t, tc.sender, sender)
		})
	}
}

type receiverFunc func([]byte)

func (f receiverFunc) ReceivePacket(pkt []byte, q radio.LinkQuality, sfd time.Time) {
	f(pkt)
}
