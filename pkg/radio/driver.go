package radio

import (
	"context"
	"fmt"
	"time"
)

// Mode selects a radio configuration profile.
type Mode uint8

// Radio modes.
const (
	// ModeDefault is 437 MHz, 7.4 kbps with FEC.
	ModeDefault Mode = 0
	// ModeRanging is the profile used for ranging replies.
	ModeRanging Mode = 1
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "437_7k_fec"
	case ModeRanging:
		return "ranging"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// LinkQuality is measured by the receiver for each packet.
type LinkQuality struct {
	RSSI    int8
	LQI     uint8
	FreqEst int8
	// CarrierSense is set when carrier was sensed before the packet.
	CarrierSense bool
}

// Receiver is the packet interrupt handler a Driver delivers to.
type Receiver interface {
	// ReceivePacket hands over a packet. The receiver copies what it keeps.
	ReceivePacket(pkt []byte, q LinkQuality, sfd time.Time)
}

// Driver is the radio hardware.
type Driver interface {
	// Attach sets the receiver of incoming packets.
	Attach(Receiver)
	// Listen puts the radio in receive mode.
	Listen(mode Mode) error
	// Transmit sends one packet and returns once it has left. A non-zero
	// at delays the start of transmission until then.
	Transmit(ctx context.Context, pkt []byte, mode Mode, at time.Time) error
}
