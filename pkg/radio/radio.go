// Package radio implements the packetized radio transport of a node.
package radio

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/irq"
)

// DefaultPreciseDelay is how long after the start of the last received
// frame a precisely timed transmission begins.
const DefaultPreciseDelay = 3 * time.Millisecond

// Stats are the radio counters reported in telemetry.
type Stats struct {
	PacketsSent             uint32
	PacketsGood             uint32
	PacketsRejectedChecksum uint32
	PacketsRejectedReserved uint32
	PacketsRejectedOther    uint32
	CSCount                 uint32
	Last                    LinkQuality
	RxMode                  Mode
	TxMode                  Mode
}

// Radio owns the single receive slot and the single transmit buffer.
// The Driver delivers packets through ReceivePacket (the interrupt side),
// everything else is called from the main loop.
type Radio struct {
	Codec        Codec
	Driver       Driver
	PreciseDelay time.Duration
	// Notify is called by the receive side when a packet is ready.
	Notify func()
	// Guard protects the receive slot and counters.
	Guard *irq.Guard

	listening  bool
	rxComplete bool
	rxLen      int
	rxBuf      [BufferSize]byte
	lastSFD    time.Time
	stats      Stats
	idleTicks  int

	txBuf [BufferSize]byte
}

// New creates a Radio on drv.
func New(drv Driver) *Radio {
	r := &Radio{Driver: drv, PreciseDelay: DefaultPreciseDelay, Guard: &irq.Guard{}}
	r.stats.Last.RSSI = -128
	drv.Attach(r)
	return r
}

// SetModes selects the receive and transmit profiles.
func (r *Radio) SetModes(rx, tx Mode) {
	r.Guard.Critical(func() {
		r.stats.RxMode, r.stats.TxMode = rx, tx
	})
}

// Listen re-arms the receiver.
func (r *Radio) Listen() error {
	var mode Mode
	r.Guard.Critical(func() {
		r.listening, r.rxComplete = true, false
		mode = r.stats.RxMode
	})
	return r.Driver.Listen(mode)
}

// ReceivePacket implements Receiver.
func (r *Radio) ReceivePacket(pkt []byte, q LinkQuality, sfd time.Time) {
	var accepted bool
	r.Guard.Critical(func() {
		if q.CarrierSense {
			r.stats.CSCount++
		}
		if !r.listening || r.rxComplete {
			return
		}
		r.stats.Last = q
		r.lastSFD = sfd
		if len(pkt) > len(r.rxBuf) {
			r.stats.PacketsRejectedOther++
			return
		}
		r.rxLen = copy(r.rxBuf[:], pkt)
		r.listening, r.rxComplete = false, true
		accepted = true
	})
	if accepted && r.Notify != nil {
		r.Notify()
	}
}

// GetMessage decodes the received packet into msg, which must hold
// MaxMessageSize bytes. It returns 0 when nothing valid was received.
func (r *Radio) GetMessage(msg []byte) (n int, uartSel int) {
	var ready bool
	r.Guard.Critical(func() { ready = r.rxComplete })
	if !ready {
		return 0, 0
	}
	n, uartSel, err := r.Codec.Decode(r.rxBuf[:r.rxLen], msg)
	r.Guard.Critical(func() {
		r.rxComplete = false
		switch err {
		case nil:
			r.stats.PacketsGood++
			r.idleTicks = 0
		case ErrChecksum:
			r.stats.PacketsRejectedChecksum++
		default:
			r.stats.PacketsRejectedOther++
		}
	})
	if err != nil {
		glog.V(2).Infof("radio: drop packet: %v", err)
		if err == ErrChecksum {
			r.Listen()
		}
		return 0, 0
	}
	return n, uartSel
}

// Send transmits msg and blocks until done, then listens again. A message
// too large for a packet is dropped with ErrOversized.
func (r *Radio) Send(ctx context.Context, msg []byte, uartSel int) error {
	var mode Mode
	r.Guard.Critical(func() { mode = r.stats.TxMode })
	return r.transmit(ctx, msg, uartSel, mode, time.Time{})
}

// SendPrecise transmits msg in mode, starting PreciseDelay after the start
// of the last received frame.
func (r *Radio) SendPrecise(ctx context.Context, msg []byte, mode Mode, uartSel int) error {
	var at time.Time
	var prev Mode
	r.Guard.Critical(func() {
		if !r.lastSFD.IsZero() {
			at = r.lastSFD.Add(r.PreciseDelay)
		}
		prev, r.stats.TxMode = r.stats.TxMode, mode
	})
	defer r.Guard.Critical(func() { r.stats.TxMode = prev })
	if !at.IsZero() && time.Now().After(at) {
		glog.Warningf("radio: precise transmission late by %s", time.Since(at))
	}
	return r.transmit(ctx, msg, uartSel, mode, at)
}

func (r *Radio) transmit(ctx context.Context, msg []byte, uartSel int, mode Mode, at time.Time) error {
	n, err := r.Codec.Encode(r.txBuf[:], msg, uartSel)
	if err != nil {
		glog.Warningf("radio: drop outgoing message: %v", err)
		return err
	}
	r.Guard.Critical(func() { r.listening = false })
	if glog.V(2) {
		glog.Infof("radio: TX % x", r.txBuf[:n])
	}
	err = r.Driver.Transmit(ctx, r.txBuf[:n], mode, at)
	r.Guard.Critical(func() { r.stats.PacketsSent++ })
	if lerr := r.Listen(); err == nil {
		err = lerr
	}
	return err
}

// TickIdle counts one idle tick and returns the number of ticks since the
// last good packet.
func (r *Radio) TickIdle() (n int) {
	r.Guard.Critical(func() {
		r.idleTicks++
		n = r.idleTicks
	})
	return
}

// ResetIdle restarts the idle tick count.
func (r *Radio) ResetIdle() {
	r.Guard.Critical(func() { r.idleTicks = 0 })
}

// Stats gets a snapshot of the counters.
func (r *Radio) Stats() (s Stats) {
	r.Guard.Critical(func() { s = r.stats })
	return
}
