// Package schedule keeps node time: the 10Hz tick, uptime, the periodic
// housekeeping it triggers and the automatic reboot deadline.
package schedule

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/irq"
)

// Timing constants.
const (
	TickInterval      = 100 * time.Millisecond
	TicksPerSecond    = 10
	MaxRxTicks        = 50
	AutoRebootSeconds = 600
	AutoRebootMax     = 604800
)

// PostponeResult is the outcome of Postpone.
type PostponeResult int

// Postpone results.
const (
	Postponed PostponeResult = iota
	TooLong
)

func (r PostponeResult) String() string {
	if r == TooLong {
		return "too-long"
	}
	return "postponed"
}

// Rebooter resets the node.
type Rebooter interface {
	Reboot()
}

// Radio is the part of the radio the scheduler supervises.
type Radio interface {
	TickIdle() int
	ResetIdle()
	Listen() error
}

// Scheduler is advanced by Tick from the timer goroutine and serviced by
// HandleEvents from the main loop.
type Scheduler struct {
	Guard    *irq.Guard
	Rebooter Rebooter
	Radio    Radio
	// Refresh samples inputs and updates the telemetry snapshot.
	Refresh func()
	// Notify wakes the main loop after a tick.
	Notify func()

	ticks    uint32
	uptime   uint32
	deadline uint32
	pending  bool
}

// New creates a Scheduler with the default reboot deadline.
func New(guard *irq.Guard) *Scheduler {
	if guard == nil {
		guard = &irq.Guard{}
	}
	return &Scheduler{Guard: guard, deadline: AutoRebootSeconds}
}

// Tick advances time by one tick.
func (s *Scheduler) Tick() {
	s.Guard.Critical(func() {
		s.ticks++
		if s.ticks%TicksPerSecond == 0 {
			s.uptime++
		}
		s.pending = true
	})
	if s.Notify != nil {
		s.Notify()
	}
}

// Run ticks every TickInterval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// HandleEvents performs work due since the last call.
func (s *Scheduler) HandleEvents() {
	var reboot, pending bool
	s.Guard.Critical(func() {
		reboot = s.deadline != 0 && s.uptime >= s.deadline
		pending, s.pending = s.pending, false
	})
	if reboot {
		glog.Infof("schedule: auto reboot at uptime %d", s.Uptime())
		if s.Rebooter != nil {
			s.Rebooter.Reboot()
		}
		return
	}
	if !pending {
		return
	}
	if s.Refresh != nil {
		s.Refresh()
	}
	if s.Radio != nil && s.Radio.TickIdle() >= MaxRxTicks {
		glog.V(2).Info("schedule: radio idle, restart receiver")
		s.Radio.ResetIdle()
		if err := s.Radio.Listen(); err != nil {
			glog.Errorf("schedule: radio listen: %v", err)
		}
	}
}

// Postpone moves the reboot deadline to seconds from now.
func (s *Scheduler) Postpone(seconds uint32) PostponeResult {
	if seconds > AutoRebootMax {
		return TooLong
	}
	s.Guard.Critical(func() {
		s.deadline = s.uptime + seconds
	})
	return Postponed
}

// SetDeadline sets the absolute reboot deadline, 0 disables it.
func (s *Scheduler) SetDeadline(uptime uint32) {
	s.Guard.Critical(func() { s.deadline = uptime })
}

// Deadline is the uptime the node reboots at, 0 for never.
func (s *Scheduler) Deadline() (v uint32) {
	s.Guard.Critical(func() { v = s.deadline })
	return
}

// Uptime is the number of seconds since start.
func (s *Scheduler) Uptime() (v uint32) {
	s.Guard.Critical(func() { v = s.uptime })
	return
}
