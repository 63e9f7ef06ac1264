// Package app implements the node application: the command table for
// time, telemetry, callsign, ranging and reboot control, run on the main
// loop together with the scheduler and the watchdog.
package app

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/node"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/radio"
	"github.com/robotalks/lst.go/pkg/schedule"
)

// LoopInterval is the idle period of the main loop.
const LoopInterval = 10 * time.Millisecond

// Watchdog is the hardware watchdog as seen by the application.
type Watchdog interface {
	Clear()
	Reboot()
}

// App is the application main controller.
type App struct {
	Node      *node.Node
	Scheduler *schedule.Scheduler
	Watchdog  Watchdog
	Clock     *Clock
	ADC       node.ADC
	// Extension handles application opcodes not known here.
	Extension node.CommandTable
	// Custom fills the custom telemetry fields.
	Custom   func() (custom0, custom1 uint32)
	Revision string

	callsign      protocol.Callsign
	adc           [protocol.ADCChannels]int16
	telemetry     protocol.Telemetry
	rebootPending bool
	rangingBuf    [protocol.MaxMessageSize]byte
}

// New creates an App and installs its command table on the node.
func New(n *node.Node, s *schedule.Scheduler, w Watchdog) *App {
	a := &App{Node: n, Scheduler: s, Watchdog: w, Clock: &Clock{}}
	if s.Guard == nil {
		s.Guard = n.Guard
	}
	s.Rebooter = w
	s.Refresh = a.refresh
	if n.Radio != nil {
		s.Radio = n.Radio
	}
	n.Table = a.Table()
	return a
}

// Table creates the application command table.
func (a *App) Table() *node.Table {
	t := node.NewTable().
		On(protocol.OpReboot, a.reboot).
		On(protocol.OpGetTime, a.getTime).
		On(protocol.OpSetTime, a.setTime).
		On(protocol.OpRanging, a.ranging).
		On(protocol.OpGetTelem, a.getTelem).
		On(protocol.OpGetCallsign, a.getCallsign).
		On(protocol.OpSetCallsign, a.setCallsign)
	t.Unhandled = node.Handler(a.unhandled)
	return t
}

// AddToLoop implements framework.LoopAdder.
func (a *App) AddToLoop(l *fx.Loop) {
	a.Scheduler.Notify = l.TriggerNext
	l.AddController(fx.PrLvWatchdog, fx.ControlFunc(func(fx.ControlContext) error {
		a.Watchdog.Clear()
		return nil
	}))
	l.AddController(fx.PrLvSchedule, fx.ControlFunc(func(fx.ControlContext) error {
		a.Scheduler.HandleEvents()
		return nil
	}))
	l.Add(a.Node)
	l.AddController(fx.PrLvPostProc, a)
	l.AddRunnable(a.Scheduler)
}

// Run sends the boot banner and runs the main loop with the given
// interrupt sources.
func (a *App) Run(ctx context.Context, runnables ...fx.Runnable) error {
	if err := a.Node.Logf("OpenLST %s", a.Revision); err != nil {
		glog.Warningf("app: banner: %v", err)
	}
	glog.Infof("app: hwid %s running", a.Node.HWID)
	a.refresh()
	loop := fx.NewLoop()
	loop.Interval = LoopInterval
	loop.Add(a)
	loop.AddRunnable(runnables...)
	return loop.Run(ctx)
}

// Control implements framework.Controller. It performs deferred actions
// after all replies of the iteration are sent.
func (a *App) Control(fx.ControlContext) error {
	if a.rebootPending {
		a.rebootPending = false
		glog.Info("app: reboot requested")
		a.Watchdog.Reboot()
	}
	return nil
}

// Telemetry returns the latest snapshot.
func (a *App) Telemetry() (t protocol.Telemetry) {
	a.Node.Guard.Critical(func() { t = a.telemetry })
	return
}

// Callsign returns the current callsign.
func (a *App) Callsign() (s string) {
	a.Node.Guard.Critical(func() { s = a.callsign.String() })
	return
}

func (a *App) refresh() {
	if a.ADC != nil {
		a.ADC.Sample(&a.adc)
	}
	t := a.Node.Telemetry(a.Scheduler.Uptime(), &a.adc)
	if a.Custom != nil {
		t.Custom0, t.Custom1 = a.Custom()
	}
	a.Node.Guard.Critical(func() { a.telemetry = t })
}

func (a *App) reboot(ctx context.Context, cmd, reply *protocol.Message) int {
	// anything shorter than a postpone reboots now.
	if len(cmd.Data) < (&protocol.Postpone{}).MinLen() {
		a.rebootPending = true
		return node.Ack(reply)
	}
	var p protocol.Postpone
	if err := protocol.Unpack(cmd.Data, &p); err != nil {
		return node.Nack(reply)
	}
	if a.Scheduler.Postpone(p.Seconds) == schedule.TooLong {
		return node.Nack(reply)
	}
	glog.V(2).Infof("app: reboot postponed to uptime %d", a.Scheduler.Deadline())
	return node.Ack(reply)
}

func (a *App) getTime(ctx context.Context, cmd, reply *protocol.Message) int {
	ts, ok := a.Clock.Get()
	if !ok {
		return node.Nack(reply)
	}
	return node.ReplyWith(reply, protocol.OpSetTime, &ts)
}

func (a *App) setTime(ctx context.Context, cmd, reply *protocol.Message) int {
	var ts protocol.Timespec
	if err := protocol.Unpack(cmd.Data, &ts); err != nil {
		return node.Nack(reply)
	}
	a.Clock.Set(ts)
	return node.Ack(reply)
}

func (a *App) getTelem(ctx context.Context, cmd, reply *protocol.Message) int {
	t := a.Telemetry()
	return node.ReplyWith(reply, protocol.OpTelem, &t)
}

func (a *App) getCallsign(ctx context.Context, cmd, reply *protocol.Message) int {
	var c protocol.Callsign
	a.Node.Guard.Critical(func() { c = a.callsign })
	return node.ReplyWith(reply, protocol.OpCallsign, &c)
}

func (a *App) setCallsign(ctx context.Context, cmd, reply *protocol.Message) int {
	var c protocol.Callsign
	if err := protocol.Unpack(cmd.Data, &c); err != nil {
		return node.Nack(reply)
	}
	a.Node.Guard.Critical(func() { a.callsign = c })
	return node.Ack(reply)
}

// ranging replies right away with a precisely timed transmission on the
// ranging mode, so the dispatcher sends nothing.
func (a *App) ranging(ctx context.Context, cmd, reply *protocol.Message) int {
	r := a.Node.Radio
	if r == nil {
		return node.Nack(reply)
	}
	node.ReplyWith(reply, protocol.OpRangingAck, &protocol.RangingAck{
		Type:    protocol.RangingAckType,
		Version: protocol.RangingAckVersion,
	})
	size, err := reply.Encode(a.rangingBuf[:])
	if err != nil {
		glog.Warningf("app: ranging ack: %v", err)
		return 0
	}
	if err := r.SendPrecise(ctx, a.rangingBuf[:size], radio.ModeRanging, 1); err != nil {
		glog.Warningf("app: ranging ack: %v", err)
	}
	return 0
}

func (a *App) unhandled(ctx context.Context, cmd, reply *protocol.Message) int {
	if a.Extension != nil {
		return a.Extension.HandleCommand(ctx, cmd, reply)
	}
	return node.Nack(reply)
}
