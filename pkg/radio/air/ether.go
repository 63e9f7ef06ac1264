// Package air is an in-process radio medium. Every antenna attached to an
// Ether hears what the others transmit.
package air

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/lst.go/pkg/radio"
)

// Ether is a shared radio medium.
type Ether struct {
	// Quality is reported to receivers for every packet.
	Quality radio.LinkQuality
	// Tap observes every transmission.
	Tap func(from string, pkt []byte, mode radio.Mode)
	// Corrupt may alter a packet in flight.
	Corrupt func(pkt []byte)

	lock     sync.RWMutex
	antennas []*Antenna
}

// New creates an Ether.
func New() *Ether {
	return &Ether{Quality: radio.LinkQuality{RSSI: -60, LQI: 40, CarrierSense: true}}
}

// Antenna creates a Driver attached to the medium.
func (e *Ether) Antenna(name string) *Antenna {
	a := &Antenna{Name: name, ether: e}
	e.lock.Lock()
	e.antennas = append(e.antennas, a)
	e.lock.Unlock()
	return a
}

func (e *Ether) broadcast(from *Antenna, pkt []byte, mode radio.Mode) {
	if e.Tap != nil {
		e.Tap(from.Name, pkt, mode)
	}
	e.lock.RLock()
	antennas := e.antennas
	e.lock.RUnlock()
	sfd := time.Now()
	for _, a := range antennas {
		if a == from {
			continue
		}
		if recv := a.receiver(); recv != nil {
			recv.ReceivePacket(pkt, e.Quality, sfd)
		}
	}
}

// Antenna implements radio.Driver on an Ether.
type Antenna struct {
	Name string

	ether *Ether
	lock  sync.Mutex
	recv  radio.Receiver
	mode  radio.Mode
	txCnt int
}

// Attach implements radio.Driver.
func (a *Antenna) Attach(r radio.Receiver) {
	a.lock.Lock()
	a.recv = r
	a.lock.Unlock()
}

// Listen implements radio.Driver.
func (a *Antenna) Listen(mode radio.Mode) error {
	a.lock.Lock()
	a.mode = mode
	a.lock.Unlock()
	return nil
}

// Transmit implements radio.Driver.
func (a *Antenna) Transmit(ctx context.Context, pkt []byte, mode radio.Mode, at time.Time) error {
	if !at.IsZero() {
		if d := time.Until(at); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	onAir := append([]byte(nil), pkt...)
	if a.ether.Corrupt != nil {
		a.ether.Corrupt(onAir)
	}
	a.lock.Lock()
	a.txCnt++
	a.lock.Unlock()
	a.ether.broadcast(a, onAir, mode)
	return nil
}

// Transmitted is the number of packets sent through this antenna.
func (a *Antenna) Transmitted() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.txCnt
}

// Mode is the mode of the last Listen.
func (a *Antenna) Mode() radio.Mode {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.mode
}

func (a *Antenna) receiver() radio.Receiver {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.recv
}
