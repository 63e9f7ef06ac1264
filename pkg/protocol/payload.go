package protocol

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

// Payload is the typed data of a message. Each opcode that carries data has
// exactly one Payload type, and every payload declares the minimum number of
// bytes required before any field is read.
type Payload interface {
	MinLen() int
}

// rawPayload is implemented by payloads whose length varies and which
// therefore are not packed by struc.
type rawPayload interface {
	decode(data []byte) error
	appendTo(dst []byte) []byte
}

var structOptions = &struc.Options{Order: binary.LittleEndian}

// Field sizes fixed on the wire.
const (
	CallsignSize  = 8
	PageSize      = 128
	ADCChannels   = 10
	TelemetrySize = 78
	TimespecSize  = 8
)

// Bootloader ack codes for non-page replies.
const (
	BootloaderAckPong   byte = 0
	BootloaderAckErased byte = 1
)

// Ranging ack constants.
const (
	RangingAckType    byte = 1
	RangingAckVersion byte = 1
)

// BootloaderAck is the data of OpBootloaderAck.
type BootloaderAck struct {
	Code byte
}

// MinLen implements Payload.
func (p *BootloaderAck) MinLen() int { return 1 }

// WritePage is the data of OpBootloaderWritePage. Data is empty for the
// final sentinel page.
type WritePage struct {
	Page byte
	Data []byte
}

// MinLen implements Payload.
func (p *WritePage) MinLen() int { return 1 }

func (p *WritePage) decode(data []byte) error {
	p.Page, p.Data = data[0], data[1:]
	return nil
}

func (p *WritePage) appendTo(dst []byte) []byte {
	return append(append(dst, p.Page), p.Data...)
}

// Postpone is the optional data of OpReboot.
type Postpone struct {
	Seconds uint32
}

// MinLen implements Payload.
func (p *Postpone) MinLen() int { return 4 }

// Timespec is the data of OpSetTime, in both directions.
type Timespec struct {
	Seconds     uint32
	Nanoseconds uint32
}

// MinLen implements Payload.
func (p *Timespec) MinLen() int { return TimespecSize }

// RangingAck is the data of OpRangingAck.
type RangingAck struct {
	Type    byte
	Version byte
}

// MinLen implements Payload.
func (p *RangingAck) MinLen() int { return 2 }

// Callsign is the data of OpSetCallsign and OpCallsign.
type Callsign struct {
	Name [CallsignSize]byte
}

// MinLen implements Payload.
func (p *Callsign) MinLen() int { return 1 }

// NewCallsign pads or truncates s to the wire size.
func NewCallsign(s string) *Callsign {
	var c Callsign
	copy(c.Name[:], s)
	return &c
}

// String returns the callsign without padding.
func (p *Callsign) String() string {
	return string(bytes.TrimRight(p.Name[:], "\x00"))
}

func (p *Callsign) decode(data []byte) error {
	p.Name = [CallsignSize]byte{}
	copy(p.Name[:], data)
	return nil
}

func (p *Callsign) appendTo(dst []byte) []byte {
	return append(dst, p.Name[:]...)
}

// ASCII is the data of OpASCII.
type ASCII struct {
	Text string
}

// MinLen implements Payload.
func (p *ASCII) MinLen() int { return 0 }

func (p *ASCII) decode(data []byte) error {
	p.Text = string(data)
	return nil
}

func (p *ASCII) appendTo(dst []byte) []byte {
	return append(dst, p.Text...)
}

// Telemetry is the data of OpTelem.
type Telemetry struct {
	Reserved                uint8
	Uptime                  uint32
	UART0RxCount            uint32
	UART1RxCount            uint32
	RxMode                  uint8
	TxMode                  uint8
	ADC                     [ADCChannels]int16
	LastRSSI                int8
	LastLQI                 uint8
	LastFreqEst             int8
	PacketsSent             uint32
	CSCount                 uint32
	PacketsGood             uint32
	PacketsRejectedChecksum uint32
	PacketsRejectedReserved uint32
	PacketsRejectedOther    uint32
	Reserved0               uint32
	Reserved1               uint32
	Custom0                 uint32
	Custom1                 uint32
}

// MinLen implements Payload.
func (p *Telemetry) MinLen() int { return TelemetrySize }

var payloadTypes = map[Opcode]func() Payload{
	OpBootloaderAck:       func() Payload { return &BootloaderAck{} },
	OpBootloaderWritePage: func() Payload { return &WritePage{} },
	OpReboot:              func() Payload { return &Postpone{} },
	OpSetTime:             func() Payload { return &Timespec{} },
	OpRangingAck:          func() Payload { return &RangingAck{} },
	OpTelem:               func() Payload { return &Telemetry{} },
	OpSetCallsign:         func() Payload { return &Callsign{} },
	OpCallsign:            func() Payload { return &Callsign{} },
	OpASCII:               func() Payload { return &ASCII{} },
}

// NewPayload creates the empty payload for an opcode.
func NewPayload(op Opcode) (Payload, bool) {
	if ctor, ok := payloadTypes[op]; ok {
		return ctor(), true
	}
	return nil, false
}

// DecodePayload decodes data as the payload of op.
func DecodePayload(op Opcode, data []byte) (Payload, error) {
	p, ok := NewPayload(op)
	if !ok {
		return nil, ErrUnknownPayload
	}
	if err := Unpack(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unpack decodes data into p after checking its minimum length.
func Unpack(data []byte, p Payload) error {
	if len(data) < p.MinLen() {
		return ErrShortPayload
	}
	if raw, ok := p.(rawPayload); ok {
		return raw.decode(data)
	}
	return struc.UnpackWithOptions(bytes.NewReader(data), p, structOptions)
}

// Pack writes the encoded payload to w.
func Pack(w io.Writer, p Payload) error {
	if raw, ok := p.(rawPayload); ok {
		_, err := w.Write(raw.appendTo(nil))
		return err
	}
	return struc.PackWithOptions(w, p, structOptions)
}

// AppendPayload appends the encoded payload to dst.
func AppendPayload(dst []byte, p Payload) ([]byte, error) {
	if raw, ok := p.(rawPayload); ok {
		return raw.appendTo(dst), nil
	}
	buf := bytes.NewBuffer(dst)
	if err := struc.PackWithOptions(buf, p, structOptions); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}
