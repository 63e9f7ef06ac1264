package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HWID is the 16-bit address of a node.
type HWID uint16

// Reserved hardware IDs.
const (
	HWIDBroadcast HWID = 0x0000
	// HWIDLocal addresses whichever node is on the other end of a serial
	// port. It is also what erased flash reads back as.
	HWIDLocal HWID = 0xFFFF
	HWIDUnset      = HWIDLocal
)

// String implements fmt.Stringer.
func (id HWID) String() string {
	return fmt.Sprintf("%04x", uint16(id))
}

// SystemRadio tags messages addressed to the radio subsystem, in both directions.
const SystemRadio byte = 1

// Size limits.
const (
	HeaderSize = 6
	// MaxMessageSize is bounded by the serial frame length byte.
	MaxMessageSize = 251
	MaxDataSize    = MaxMessageSize - HeaderSize
)

// Header is the fixed part of every message.
type Header struct {
	HWID    HWID
	Seq     uint16
	System  byte
	Command Opcode
}

// Encode writes the header into b, which must hold HeaderSize bytes.
func (h *Header) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], uint16(h.HWID))
	binary.LittleEndian.PutUint16(b[2:], h.Seq)
	b[4], b[5] = h.System, byte(h.Command)
}

// DecodeHeader parses the header from b.
func DecodeHeader(b []byte) (h Header, err error) {
	if len(b) < HeaderSize {
		return h, ErrShortMessage
	}
	h.HWID = HWID(binary.LittleEndian.Uint16(b[0:]))
	h.Seq = binary.LittleEndian.Uint16(b[2:])
	h.System, h.Command = b[4], Opcode(b[5])
	return
}

// Addressed reports whether the header targets the radio subsystem of the
// node with the given hwid.
func (h *Header) Addressed(self HWID) bool {
	return h.System == SystemRadio && (h.HWID == self || h.HWID == HWIDLocal)
}

// Message is a parsed command or reply.
type Message struct {
	Header
	Data []byte
}

// ParseMessage parses b. Data references b, no copy is made.
func ParseMessage(b []byte) (*Message, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	return &Message{Header: h, Data: b[HeaderSize:]}, nil
}

// Len is the encoded size.
func (m *Message) Len() int {
	return HeaderSize + len(m.Data)
}

// Encode writes the message into dst and returns the encoded size.
func (m *Message) Encode(dst []byte) (int, error) {
	n := m.Len()
	if n > MaxMessageSize {
		return 0, ErrOversized
	}
	if len(dst) < n {
		return 0, io.ErrShortBuffer
	}
	m.Header.Encode(dst)
	copy(dst[HeaderSize:], m.Data)
	return n, nil
}

// Bytes returns encoded bytes for sending.
func (m *Message) Bytes() []byte {
	b := make([]byte, m.Len())
	m.Header.Encode(b)
	copy(b[HeaderSize:], m.Data)
	return b
}

// SetPayload encodes p as the message data, reusing the capacity of Data.
func (m *Message) SetPayload(p Payload) error {
	data, err := AppendPayload(m.Data[:0], p)
	if err != nil {
		return err
	}
	if len(data) > MaxDataSize {
		return ErrOversized
	}
	m.Data = data
	return nil
}

// String implements fmt.Stringer.
func (m *Message) String() string {
	return fmt.Sprintf("[%s #%d sys=%d %s] % x", m.HWID, m.Seq, m.System, m.Command, m.Data)
}
