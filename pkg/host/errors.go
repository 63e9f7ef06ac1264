package host

import (
	"errors"
	"fmt"

	"github.com/robotalks/lst.go/pkg/protocol"
)

var (
	// ErrNoReply indicates no reply received from the node.
	// This happens when a reply is received for a later command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrTimeout indicates the reply did not arrive in time.
	ErrTimeout = errors.New("reply timeout")
	// ErrUnexpectedReply indicates a reply of the wrong kind.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// CommandError is a NACK reply.
type CommandError struct {
	Code protocol.Opcode
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Code)
}
