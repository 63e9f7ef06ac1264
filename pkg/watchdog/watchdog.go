// Package watchdog resets the node when the main loop stops clearing it.
package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultTimeout is the watchdog period.
const DefaultTimeout = time.Second

// ErrReset is returned by Run when the node is reset.
var ErrReset = errors.New("watchdog reset")

// Watchdog is the hardware watchdog timer.
type Watchdog struct {
	Timeout time.Duration

	lock    sync.Mutex
	cleared time.Time
	resetCh chan string
}

// New creates a Watchdog with timeout, DefaultTimeout if zero.
func New(timeout time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watchdog{Timeout: timeout, cleared: time.Now(), resetCh: make(chan string, 1)}
}

// Clear restarts the countdown.
func (w *Watchdog) Clear() {
	w.lock.Lock()
	w.cleared = time.Now()
	w.lock.Unlock()
}

// Reboot resets the node immediately.
func (w *Watchdog) Reboot() {
	select {
	case w.resetCh <- "reboot requested":
	default:
	}
}

// Run returns ErrReset once the node resets, or when ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	w.Clear()
	ticker := time.NewTicker(w.Timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-w.resetCh:
			glog.Infof("watchdog: %s", reason)
			return ErrReset
		case <-ticker.C:
			w.lock.Lock()
			expired := time.Since(w.cleared) > w.Timeout
			w.lock.Unlock()
			if expired {
				glog.Warningf("watchdog: not cleared within %s", w.Timeout)
				return ErrReset
			}
		}
	}
}
