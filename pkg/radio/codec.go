package radio

import (
	"encoding/binary"
	"errors"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// Packet layout constants.
const (
	// BufferSize is the size of the packet buffers.
	BufferSize = 255
	// FlagUARTSel selects UART1 as the reply target when set.
	FlagUARTSel byte = 1 << 6

	footerSize = 4
	// extraSize is what a packet adds to a message: the length, flags and
	// footer, minus the hwid moved out of the header.
	extraSize = 1 + 1 + footerSize - 2
	// MinLength is the smallest valid length byte.
	MinLength = 1 + protocol.HeaderSize + footerSize - 2
	// MaxMessageSize is the largest message carried in one packet.
	MaxMessageSize = protocol.MaxMessageSize
)

var (
	// ErrUndersized indicates a packet too short to hold a message.
	ErrUndersized = errors.New("packet undersized")
	// ErrTruncated indicates fewer bytes than the length byte announces.
	ErrTruncated = errors.New("packet truncated")
	// ErrChecksum indicates a checksum mismatch.
	ErrChecksum = errors.New("packet checksum mismatch")
	// ErrOversized indicates a message too large for a packet.
	ErrOversized = errors.New("message too large for packet")
)

// Codec converts between messages and radio packets:
//
//	len:u8 flags:u8 msg[2:] hwid:u16le crc:u16le
//
// The checksum covers everything from the length byte up to the checksum.
type Codec struct {
	Checksum protocol.ChecksumFunc
}

func (c *Codec) checksum(data []byte) uint16 {
	if c.Checksum != nil {
		return c.Checksum(data)
	}
	return protocol.Checksum(data)
}

// Decode validates pkt and reconstructs the message into msg, which must
// hold MaxMessageSize bytes. It returns the message length and the reply
// UART selector.
func (c *Codec) Decode(pkt, msg []byte) (n int, uartSel int, err error) {
	if len(pkt) == 0 || int(pkt[0]) < MinLength {
		return 0, 0, ErrUndersized
	}
	length := int(pkt[0])
	if length > BufferSize-1 {
		return 0, 0, ErrOversized
	}
	if len(pkt) < length+1 {
		return 0, 0, ErrTruncated
	}
	footer := pkt[length+1-footerSize : length+1]
	if c.checksum(pkt[:length+1-2]) != binary.LittleEndian.Uint16(footer[2:]) {
		return 0, 0, ErrChecksum
	}
	n = length - 1 - footerSize + 2
	copy(msg[2:n], pkt[2:n])
	msg[0], msg[1] = footer[0], footer[1]
	if pkt[1]&FlagUARTSel != 0 {
		uartSel = 1
	}
	return n, uartSel, nil
}

// Encode builds the packet for msg into dst, which must hold BufferSize
// bytes, and returns the packet size.
func (c *Codec) Encode(dst, msg []byte, uartSel int) (int, error) {
	if len(msg) < protocol.HeaderSize {
		return 0, protocol.ErrShortMessage
	}
	if len(msg) > MaxMessageSize {
		return 0, ErrOversized
	}
	n := len(msg)
	length := n + extraSize - 1
	copy(dst[2:n], msg[2:n])
	dst[0] = byte(length)
	dst[1] = 0
	if uartSel != 0 {
		dst[1] = FlagUARTSel
	}
	dst[n], dst[n+1] = msg[0], msg[1]
	binary.LittleEndian.PutUint16(dst[n+2:], c.checksum(dst[:n+2]))
	return length + 1, nil
}
