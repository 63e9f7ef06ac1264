// Package host talks to a node from the ground: a client matching replies
// to requests by seqnum, and a programmer driving the bootloader.
package host

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/uart"
)

// DefaultTimeout is how long a command waits for its reply.
const DefaultTimeout = time.Second

// clientBuffers is the number of reassembly buffers of the client port.
const clientBuffers = 4

// Result is the result of a command using Do.
type Result struct {
	Err   error
	Reply *protocol.Message
}

// Command represents a pending command waiting for reply.
type Command struct {
	requestSeq uint16
	resultCh   chan Result
	next       *Command
}

// RequestSeq returns the request seqnum.
func (c *Command) RequestSeq() uint16 {
	return c.requestSeq
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// Client sends commands to one node over a serial link.
type Client struct {
	// HWID is the target node.
	HWID    protocol.HWID
	Timeout time.Duration
	// OnMessage receives messages that are not replies, e.g. ascii logs.
	OnMessage func(*protocol.Message)

	port     *uart.Port
	seq      uint16
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
	rxBuf    [uart.MaxFrameSize]byte
}

// NewClient creates a client on a serial link.
func NewClient(rw io.ReadWriter, hwid protocol.HWID) *Client {
	c := &Client{
		HWID:    hwid,
		Timeout: DefaultTimeout,
		port:    uart.NewPort("host", rw, clientBuffers),
		seq:     uint16(time.Now().UnixNano()),
	}
	c.port.Notify = c.drain
	return c
}

// Run implements Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.port.Run(ctx)
}

func (c *Client) nextSeq() uint16 {
	c.seq++
	if c.seq == 0 {
		// 0 is used by unsolicited messages.
		c.seq++
	}
	return c.seq
}

// DoWith sends a command and expects a result in the provided chan.
func (c *Client) DoWith(op protocol.Opcode, data []byte, ch chan Result) *Command {
	cmd := &Command{resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	msg := protocol.Message{
		Header: protocol.Header{
			HWID:    c.HWID,
			Seq:     c.nextSeq(),
			System:  protocol.SystemRadio,
			Command: op,
		},
		Data: data,
	}
	cmd.requestSeq = msg.Seq
	if msg.Len() > protocol.MaxMessageSize {
		cmd.resultCh <- Result{Err: protocol.ErrOversized}
		return cmd
	}
	glog.V(2).Infof("host: REQ %s", &msg)
	if err := c.port.SendMessage(msg.Bytes()); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a Command for result.
func (c *Client) Do(op protocol.Opcode, data []byte) *Command {
	return c.DoWith(op, data, make(chan Result, 1))
}

// Request sends a command and waits for the reply. A NACK reply is
// returned as *CommandError.
func (c *Client) Request(ctx context.Context, op protocol.Opcode, data []byte) (*protocol.Message, error) {
	cmd := c.Do(op, data)
	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.cancel(cmd)
		return nil, ctx.Err()
	case <-timer.C:
		c.cancel(cmd)
		return nil, ErrTimeout
	case r := <-cmd.resultCh:
		return r.Reply, r.Err
	}
}

// RequestPayload sends a command with a typed payload.
func (c *Client) RequestPayload(ctx context.Context, op protocol.Opcode, p protocol.Payload) (*protocol.Message, error) {
	data, err := protocol.AppendPayload(nil, p)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, op, data)
}

func (c *Client) cancel(cmd *Command) {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	var prev *Command
	for curr := c.cmdsHead; curr != nil; prev, curr = curr, curr.next {
		if curr != cmd {
			continue
		}
		if prev == nil {
			c.cmdsHead = curr.next
		} else {
			prev.next = curr.next
		}
		if c.cmdsTail == curr {
			c.cmdsTail = prev
		}
		curr.next = nil
		return
	}
}

func (c *Client) drain() {
	for {
		n := c.port.GetMessage(c.rxBuf[:])
		if n == 0 {
			return
		}
		msg, err := protocol.ParseMessage(append([]byte(nil), c.rxBuf[:n]...))
		if err != nil {
			glog.V(2).Infof("host: drop %d bytes: %v", n, err)
			continue
		}
		c.HandleMessage(msg)
	}
}

// HandleMessage matches a received message against pending commands.
func (c *Client) HandleMessage(msg *protocol.Message) {
	glog.V(2).Infof("host: RCV %s", msg)
	if msg.System != protocol.SystemRadio || msg.Seq == 0 || msg.Command == protocol.OpASCII {
		if h := c.OnMessage; h != nil {
			h(msg)
		}
		return
	}
	c.cmdsLock.Lock()
	head := c.cmdsHead
	curr := c.cmdsHead
	for ; curr != nil; curr = curr.next {
		if curr.requestSeq == msg.Seq {
			if c.cmdsHead = curr.next; c.cmdsHead == nil {
				c.cmdsTail = nil
			}
			curr.next = nil
			break
		}
	}
	c.cmdsLock.Unlock()
	if curr == nil {
		if h := c.OnMessage; h != nil {
			h(msg)
		}
		return
	}
	for head != curr {
		next := head.next
		head.next = nil
		head.resultCh <- Result{Err: ErrNoReply}
		head = next
	}
	switch msg.Command {
	case protocol.OpNack, protocol.OpBootloaderNack:
		curr.resultCh <- Result{Err: &CommandError{Code: msg.Command}, Reply: msg}
	default:
		curr.resultCh <- Result{Reply: msg}
	}
}
