package protocol

import "fmt"

// Opcode is the command byte of a message.
type Opcode byte

// Common opcodes.
const (
	OpAck   Opcode = 0x10
	OpNack  Opcode = 0xFF
	OpASCII Opcode = 0x11
)

// Bootloader opcodes.
const (
	OpBootloaderPing      Opcode = 0x00
	OpBootloaderAck       Opcode = 0x01
	OpBootloaderWritePage Opcode = 0x02
	OpBootloaderErase     Opcode = 0x0C
	OpBootloaderNack      Opcode = 0x0F
)

// Application opcodes.
const (
	OpReboot      Opcode = 0x12
	OpGetTime     Opcode = 0x13
	OpSetTime     Opcode = 0x14
	OpRanging     Opcode = 0x15
	OpRangingAck  Opcode = 0x16
	OpGetTelem    Opcode = 0x17
	OpTelem       Opcode = 0x18
	OpGetCallsign Opcode = 0x19
	OpSetCallsign Opcode = 0x1A
	OpCallsign    Opcode = 0x1B
)

var opcodeNames = map[Opcode]string{
	OpAck:                 "ack",
	OpNack:                "nack",
	OpASCII:               "ascii",
	OpBootloaderPing:      "bootloader_ping",
	OpBootloaderAck:       "bootloader_ack",
	OpBootloaderWritePage: "bootloader_write_page",
	OpBootloaderErase:     "bootloader_erase",
	OpBootloaderNack:      "bootloader_nack",
	OpReboot:              "reboot",
	OpGetTime:             "get_time",
	OpSetTime:             "set_time",
	OpRanging:             "ranging",
	OpRangingAck:          "ranging_ack",
	OpGetTelem:            "get_telem",
	OpTelem:               "telem",
	OpGetCallsign:         "get_callsign",
	OpSetCallsign:         "set_callsign",
	OpCallsign:            "callsign",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%02x)", byte(op))
}

// Scope is the opcode range an opcode belongs to.
type Scope int

// Opcode scopes.
const (
	ScopeUnknown Scope = iota
	ScopeCommon
	ScopeBootloader
	ScopeApplication
)

// Scope returns the range of the opcode.
func (op Opcode) Scope() Scope {
	switch {
	case op == OpAck || op == OpNack || op == OpASCII:
		return ScopeCommon
	case op <= OpBootloaderNack:
		return ScopeBootloader
	case op >= OpReboot && op <= OpCallsign:
		return ScopeApplication
	}
	return ScopeUnknown
}

// ParseOpcode looks up an opcode by name.
func ParseOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
