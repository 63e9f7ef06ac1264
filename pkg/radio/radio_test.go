package radio_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/radio"
	"github.com/robotalks/lst.go/pkg/radio/air"
)

var msgGetTelem = []byte{0x34, 0x12, 0x01, 0x00, 0x01, 0x17}

func newPair(t *testing.T) (*air.Ether, *radio.Radio, *radio.Radio) {
	ether := air.New()
	a := radio.New(ether.Antenna("a"))
	b := radio.New(ether.Antenna("b"))
	require.NoError(t, a.Listen())
	require.NoError(t, b.Listen())
	return ether, a, b
}

func TestRadioSendReceive(t *testing.T) {
	_, a, b := newPair(t)
	notified := 0
	b.Notify = func() { notified++ }

	require.NoError(t, a.Send(context.Background(), msgGetTelem, 1))
	require.Equal(t, 1, notified)

	msg := make([]byte, radio.MaxMessageSize)
	n, uartSel := b.GetMessage(msg)
	require.Equal(t, msgGetTelem, msg[:n])
	require.Equal(t, 1, uartSel)

	n, _ = b.GetMessage(msg)
	require.Zero(t, n)

	sa, sb := a.Stats(), b.Stats()
	require.EqualValues(t, 1, sa.PacketsSent)
	require.EqualValues(t, 1, sb.PacketsGood)
	require.EqualValues(t, 1, sb.CSCount)
	require.EqualValues(t, -60, sb.Last.RSSI)
	require.EqualValues(t, -128, sa.Last.RSSI)
}

func TestRadioSingleReceiveSlot(t *testing.T) {
	_, a, b := newPair(t)
	require.NoError(t, a.Send(context.Background(), msgGetTelem, 0))
	second := append([]byte{}, msgGetTelem...)
	second[2] = 2
	require.NoError(t, a.Send(context.Background(), second, 0))

	msg := make([]byte, radio.MaxMessageSize)
	n, _ := b.GetMessage(msg)
	require.Equal(t, msgGetTelem, msg[:n])
	// not listening until re-armed, so the second packet was lost.
	n, _ = b.GetMessage(msg)
	require.Zero(t, n)

	require.NoError(t, b.Listen())
	require.NoError(t, a.Send(context.Background(), second, 0))
	n, _ = b.GetMessage(msg)
	require.Equal(t, second, msg[:n])
}

func TestRadioChecksumRejected(t *testing.T) {
	ether, a, b := newPair(t)
	ether.Corrupt = func(pkt []byte) { pkt[3] ^= 0x10 }
	require.NoError(t, a.Send(context.Background(), msgGetTelem, 0))
	msg := make([]byte, radio.MaxMessageSize)
	n, _ := b.GetMessage(msg)
	require.Zero(t, n)
	stats := b.Stats()
	require.EqualValues(t, 1, stats.PacketsRejectedChecksum)
	require.Zero(t, stats.PacketsGood)

	// rejected on checksum re-arms the receiver immediately.
	ether.Corrupt = nil
	require.NoError(t, a.Send(context.Background(), msgGetTelem, 0))
	n, _ = b.GetMessage(msg)
	require.Equal(t, msgGetTelem, msg[:n])
}

func TestRadioUndersizedRejected(t *testing.T) {
	ether := air.New()
	r := radio.New(ether.Antenna("r"))
	require.NoError(t, r.Listen())
	r.ReceivePacket([]byte{0x03, 0x00, 0x01, 0x02}, radio.LinkQuality{}, time.Now())
	msg := make([]byte, radio.MaxMessageSize)
	n, _ := r.GetMessage(msg)
	require.Zero(t, n)
	require.EqualValues(t, 1, r.Stats().PacketsRejectedOther)
}

func TestRadioOversizedDropped(t *testing.T) {
	_, a, _ := newPair(t)
	err := a.Send(context.Background(), make([]byte, radio.MaxMessageSize+1), 0)
	require.Equal(t, radio.ErrOversized, err)
	require.Zero(t, a.Stats().PacketsSent)
}

func TestRadioSendPrecise(t *testing.T) {
	ether, a, b := newPair(t)
	var modes []radio.Mode
	var sentAt []time.Time
	ether.Tap = func(from string, pkt []byte, mode radio.Mode) {
		modes = append(modes, mode)
		sentAt = append(sentAt, time.Now())
	}
	b.PreciseDelay = 20 * time.Millisecond

	start := time.Now()
	require.NoError(t, a.Send(context.Background(), msgGetTelem, 0))
	msg := make([]byte, radio.MaxMessageSize)
	n, _ := b.GetMessage(msg)
	require.NotZero(t, n)
	require.NoError(t, b.SendPrecise(context.Background(), msg[:n], radio.ModeRanging, 1))

	require.Equal(t, []radio.Mode{radio.ModeDefault, radio.ModeRanging}, modes)
	require.True(t, sentAt[1].Sub(start) >= 20*time.Millisecond)
	require.Equal(t, radio.ModeDefault, b.Stats().TxMode)
}

func TestRadioIdleTicks(t *testing.T) {
	_, a, b := newPair(t)
	require.Equal(t, 1, b.TickIdle())
	require.Equal(t, 2, b.TickIdle())
	require.NoError(t, a.Send(context.Background(), msgGetTelem, 0))
	b.GetMessage(make([]byte, radio.MaxMessageSize))
	require.Equal(t, 1, b.TickIdle())
	b.ResetIdle()
	require.Equal(t, 1, b.TickIdle())
}
