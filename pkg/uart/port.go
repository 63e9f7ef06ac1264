// Package uart implements the framed serial transports of a node.
package uart

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/irq"
)

// Port is one serial transport. A reader goroutine plays the receive
// interrupt and feeds the decoder, the main loop drains it with GetMessage.
type Port struct {
	Name       string
	ReadWriter io.ReadWriter
	// Notify is called by the receiver whenever a frame completes.
	Notify func()
	// Guard protects the decoder, it may be shared with other interrupt
	// sources of the same node.
	Guard *irq.Guard

	decoder *Decoder

	txLock sync.Mutex
	txBuf  [FrameOverhead + MaxFrameSize]byte
}

// NewPort creates a Port with the given number of reassembly buffers.
func NewPort(name string, rw io.ReadWriter, buffers int) *Port {
	return &Port{
		Name:       name,
		ReadWriter: rw,
		Guard:      &irq.Guard{},
		decoder:    NewDecoder(buffers),
	}
}

// Run implements Runnable.
func (p *Port) Run(ctx context.Context) error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, p.receive)
	}
	return fx.RunWithContext(ctx, p.receive)
}

func (p *Port) receive() error {
	buf := make([]byte, 64)
	for {
		n, err := p.ReadWriter.Read(buf)
		if n > 0 {
			p.Receive(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				glog.V(2).Infof("%s: closed", p.Name)
				return nil
			}
			return err
		}
	}
}

// Receive feeds received bytes into the decoder, as the receive interrupt
// does.
func (p *Port) Receive(data []byte) {
	var ready bool
	p.Guard.Critical(func() {
		for _, b := range data {
			if p.decoder.Parse(b) {
				ready = true
			}
		}
	})
	if ready && p.Notify != nil {
		p.Notify()
	}
}

// GetMessage copies the next ready message into dst and returns its length,
// or 0 if none is ready.
func (p *Port) GetMessage(dst []byte) (n int) {
	p.Guard.Critical(func() { n = p.decoder.Poll(dst) })
	return
}

// SendMessage writes msg as one frame.
func (p *Port) SendMessage(msg []byte) error {
	p.txLock.Lock()
	defer p.txLock.Unlock()
	frame, err := AppendFrame(p.txBuf[:0], msg)
	if err != nil {
		return err
	}
	if glog.V(2) {
		glog.Infof("%s: TX % x", p.Name, msg)
	}
	_, err = p.ReadWriter.Write(frame)
	return err
}

// RxCount is the number of frames received.
func (p *Port) RxCount() (n uint32) {
	p.Guard.Critical(func() { n = p.decoder.RxCount() })
	return
}

// DecoderState reports the decoder state.
func (p *Port) DecoderState() (s State) {
	p.Guard.Critical(func() { s = p.decoder.State() })
	return
}
