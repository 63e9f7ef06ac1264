package link

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/lst.go/pkg/framework"
)

// Relay keeps a link open while the ports on top of it come and go. Every
// Attach returns a fresh endpoint; traffic from the link goes to the most
// recently attached one.
type Relay struct {
	Name string

	link io.ReadWriteCloser
	lock sync.Mutex
	peer io.ReadWriteCloser
}

// NewRelay creates a Relay over link.
func NewRelay(name string, link io.ReadWriteCloser) *Relay {
	return &Relay{Name: name, link: link}
}

// Attach creates a new endpoint, replacing the previous one.
func (r *Relay) Attach() io.ReadWriteCloser {
	device, peer := Pipe()
	r.lock.Lock()
	prev := r.peer
	r.peer = peer
	r.lock.Unlock()
	if prev != nil {
		prev.Close()
	}
	go func() {
		if _, err := io.Copy(r.link, peer); err != nil {
			glog.V(2).Infof("%s: relay: %v", r.Name, err)
		}
	}()
	return device
}

// Run implements Runnable. It copies from the link to the attached
// endpoint until the link is closed.
func (r *Relay) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, r.link, r.receive)
}

func (r *Relay) receive() error {
	buf := make([]byte, 256)
	for {
		n, err := r.link.Read(buf)
		if n > 0 {
			r.lock.Lock()
			peer := r.peer
			r.lock.Unlock()
			if peer != nil {
				// the endpoint may already be closed by a restarting port.
				peer.Write(buf[:n])
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
