package protocol

import "errors"

var (
	// ErrShortMessage indicates fewer bytes than a message header.
	ErrShortMessage = errors.New("message shorter than header")
	// ErrOversized indicates the message does not fit the transport.
	ErrOversized = errors.New("message too large")
	// ErrShortPayload indicates a payload below the declared minimum of its opcode.
	ErrShortPayload = errors.New("payload too short")
	// ErrUnknownPayload indicates the opcode carries no typed payload.
	ErrUnknownPayload = errors.New("no payload defined for opcode")
)
