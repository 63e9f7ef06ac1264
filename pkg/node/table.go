package node

import (
	"context"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// CommandTable handles commands addressed to the node. reply is pre-filled
// as a NACK from this node with the request seqnum. The returned value is
// the length of the reply to send, 0 for no reply.
type CommandTable interface {
	HandleCommand(ctx context.Context, cmd *protocol.Message, reply *protocol.Message) int
}

// Handler is the func form of CommandTable.
type Handler func(ctx context.Context, cmd *protocol.Message, reply *protocol.Message) int

// HandleCommand implements CommandTable.
func (h Handler) HandleCommand(ctx context.Context, cmd *protocol.Message, reply *protocol.Message) int {
	return h(ctx, cmd, reply)
}

// Table maps opcodes to handlers. Unhandled receives everything else,
// when nil such commands are NACKed.
type Table struct {
	Handlers  map[protocol.Opcode]Handler
	Unhandled CommandTable
}

// NewTable creates a Table answering the common commands: an ACK is
// answered with an ACK and a NACK with a NACK.
func NewTable() *Table {
	t := &Table{Handlers: make(map[protocol.Opcode]Handler)}
	return t.On(protocol.OpAck, ackHandler).On(protocol.OpNack, nackHandler)
}

func ackHandler(ctx context.Context, cmd, reply *protocol.Message) int {
	return Ack(reply)
}

func nackHandler(ctx context.Context, cmd, reply *protocol.Message) int {
	return Nack(reply)
}

// On registers the handler for op.
func (t *Table) On(op protocol.Opcode, h Handler) *Table {
	t.Handlers[op] = h
	return t
}

// HandleCommand implements CommandTable.
func (t *Table) HandleCommand(ctx context.Context, cmd *protocol.Message, reply *protocol.Message) int {
	if h, ok := t.Handlers[cmd.Command]; ok {
		return h(ctx, cmd, reply)
	}
	if t.Unhandled != nil {
		return t.Unhandled.HandleCommand(ctx, cmd, reply)
	}
	return Nack(reply)
}

// Ack turns reply into an ACK.
func Ack(reply *protocol.Message) int {
	return Reply(reply, protocol.OpAck)
}

// Nack turns reply into a NACK.
func Nack(reply *protocol.Message) int {
	return Reply(reply, protocol.OpNack)
}

// Reply sets the reply opcode with no data.
func Reply(reply *protocol.Message, op protocol.Opcode) int {
	reply.Command = op
	reply.Data = reply.Data[:0]
	return reply.Len()
}

// ReplyWith sets the reply opcode and payload. An unencodable payload
// turns the reply into a NACK.
func ReplyWith(reply *protocol.Message, op protocol.Opcode, p protocol.Payload) int {
	reply.Data = reply.Data[:0]
	if err := reply.SetPayload(p); err != nil {
		return Nack(reply)
	}
	reply.Command = op
	return reply.Len()
}
