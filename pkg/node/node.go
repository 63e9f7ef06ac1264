// Package node wires the transports of a node together: it polls the
// UARTs and the radio, dispatches messages addressed to the node to a
// CommandTable and forwards everything else.
package node

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/irq"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/radio"
	"github.com/robotalks/lst.go/pkg/uart"
)

// Default number of reassembly buffers per UART.
const (
	UART0Buffers = 1
	UART1Buffers = 2
)

// Node is the transport hub of one device.
type Node struct {
	HWID  protocol.HWID
	Guard *irq.Guard
	UART  [2]*uart.Port
	Radio *radio.Radio
	Table CommandTable
	// Forward enables forwarding of traffic not addressed to the node,
	// indexed by the Transport it arrives on.
	Forward [numTransports]bool

	rxBuf    [protocol.MaxMessageSize]byte
	replyBuf [protocol.MaxMessageSize]byte
	logBuf   [protocol.MaxMessageSize]byte
	cmd      protocol.Message
	reply    protocol.Message
}

// New creates a Node.
func New(hwid protocol.HWID) *Node {
	return &Node{HWID: hwid, Guard: &irq.Guard{}}
}

// AttachUART installs p as UART n. The port shares the node's guard.
func (n *Node) AttachUART(index int, p *uart.Port) *Node {
	p.Guard = n.Guard
	n.UART[index] = p
	return n
}

// AttachRadio installs the radio. It shares the node's guard.
func (n *Node) AttachRadio(r *radio.Radio) *Node {
	r.Guard = n.Guard
	n.Radio = r
	return n
}

// ForwardAll sets forwarding on every transport.
func (n *Node) ForwardAll(enabled bool) *Node {
	for i := range n.Forward {
		n.Forward[i] = enabled
	}
	return n
}

// AddToLoop implements framework.LoopAdder. The node is polled at the
// dispatch level, the UARTs run along with the loop and every receive
// wakes the loop up.
func (n *Node) AddToLoop(l *fx.Loop) {
	for _, p := range n.UART {
		if p != nil {
			p.Notify = l.TriggerNext
			l.AddRunnable(p)
		}
	}
	if n.Radio != nil {
		n.Radio.Notify = l.TriggerNext
	}
	l.AddController(fx.PrLvDispatch, n)
}

// Control implements framework.Controller.
func (n *Node) Control(cc fx.ControlContext) error {
	return n.Poll(cc.Context())
}

// Poll drains every transport and dispatches what was received.
func (n *Node) Poll(ctx context.Context) error {
	for i, p := range n.UART {
		if p == nil {
			continue
		}
		for {
			size := p.GetMessage(n.rxBuf[:])
			if size == 0 {
				break
			}
			n.Dispatch(ctx, n.rxBuf[:size], FromUART(i))
		}
	}
	if n.Radio != nil {
		if size, uartSel := n.Radio.GetMessage(n.rxBuf[:]); size > 0 {
			// the message is out of the receive slot, take the next one.
			if err := n.Radio.Listen(); err != nil {
				glog.Warningf("node: radio listen: %v", err)
			}
			n.Dispatch(ctx, n.rxBuf[:size], FromRadio(uartSel))
		}
	}
	return nil
}

// Dispatch handles one received message.
func (n *Node) Dispatch(ctx context.Context, msg []byte, from Source) {
	h, err := protocol.DecodeHeader(msg)
	if err != nil {
		glog.V(2).Infof("node: drop %d bytes from %s: %v", len(msg), from, err)
		return
	}
	if h.Addressed(n.HWID) {
		n.handle(ctx, h, msg[protocol.HeaderSize:], from)
		return
	}
	if !n.Forward[from.Transport] {
		glog.V(2).Infof("node: ignore %s #%d for %s from %s", h.Command, h.Seq, h.HWID, from)
		return
	}
	if err := n.forward(ctx, msg, from); err != nil {
		glog.Warningf("node: forward from %s: %v", from, err)
	}
}

func (n *Node) handle(ctx context.Context, h protocol.Header, data []byte, from Source) {
	if n.Table == nil {
		return
	}
	n.cmd.Header, n.cmd.Data = h, data
	n.reply.Header = protocol.Header{
		HWID:    n.HWID,
		Seq:     h.Seq,
		System:  protocol.SystemRadio,
		Command: protocol.OpNack,
	}
	n.reply.Data = n.replyBuf[protocol.HeaderSize:protocol.HeaderSize]
	glog.V(2).Infof("node: %s from %s", &n.cmd, from)
	if n.Table.HandleCommand(ctx, &n.cmd, &n.reply) == 0 {
		return
	}
	size, err := n.reply.Encode(n.replyBuf[:])
	if err != nil {
		glog.Warningf("node: drop reply %s: %v", n.reply.Command, err)
		return
	}
	if err := n.send(ctx, n.replyBuf[:size], from); err != nil {
		glog.Warningf("node: reply to %s: %v", from, err)
	}
}

func (n *Node) send(ctx context.Context, msg []byte, to Source) error {
	if to.Transport == TransportRadio {
		if n.Radio == nil {
			return ErrNoTransport
		}
		return n.Radio.Send(ctx, msg, to.UARTSel)
	}
	p := n.UART[to.Transport]
	if p == nil {
		return ErrNoTransport
	}
	return p.SendMessage(msg)
}

func (n *Node) forward(ctx context.Context, msg []byte, from Source) error {
	if from.Transport != TransportRadio {
		return n.send(ctx, msg, FromRadio(int(from.Transport)))
	}
	for _, index := range []int{from.UARTSel, 1, 0} {
		if index >= 0 && index < len(n.UART) && n.UART[index] != nil {
			return n.UART[index].SendMessage(msg)
		}
	}
	return ErrNoTransport
}

// Logf sends an ascii message on the debug port, UART1, or UART0 when
// UART1 is not attached.
func (n *Node) Logf(format string, args ...interface{}) error {
	p := n.UART[1]
	if p == nil {
		p = n.UART[0]
	}
	if p == nil {
		return ErrNoTransport
	}
	msg := protocol.Message{
		Header: protocol.Header{
			HWID:    n.HWID,
			System:  protocol.SystemRadio,
			Command: protocol.OpASCII,
		},
	}
	msg.Data = n.logBuf[protocol.HeaderSize:protocol.HeaderSize]
	if err := msg.SetPayload(&protocol.ASCII{Text: fmt.Sprintf(format, args...)}); err != nil {
		return err
	}
	size, err := msg.Encode(n.logBuf[:])
	if err != nil {
		return err
	}
	return p.SendMessage(n.logBuf[:size])
}
