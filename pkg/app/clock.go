package app

import (
	"sync"
	"time"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// Clock is the real time clock. It is unset until the ground sets it.
type Clock struct {
	// Now is the free running time base, time.Now if nil.
	Now func() time.Time

	lock   sync.Mutex
	set    bool
	offset time.Duration
}

// Set sets the current time.
func (c *Clock) Set(ts protocol.Timespec) {
	t := time.Unix(int64(ts.Seconds), int64(ts.Nanoseconds))
	c.lock.Lock()
	c.offset = t.Sub(c.now())
	c.set = true
	c.lock.Unlock()
}

// Get returns the current time, ok is false if it was never set.
func (c *Clock) Get() (ts protocol.Timespec, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.set {
		return ts, false
	}
	t := c.now().Add(c.offset)
	ts.Seconds = uint32(t.Unix())
	ts.Nanoseconds = uint32(t.Nanosecond())
	return ts, true
}

func (c *Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
