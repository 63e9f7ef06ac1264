// Package bootloader implements the node bootloader: it accepts a new
// application over any transport and hands over to a correctly signed
// application when left alone.
package bootloader

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/flash"
	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/node"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/signature"
)

// Keep-alive in loop intervals.
const (
	CommandWatchdogDelay = 900
	FinalPageDelay       = 200
	LoopInterval         = time.Millisecond
	FinalPage            = 255
)

// ErrBootApp is returned by Run when the application should be started.
var ErrBootApp = errors.New("boot application")

// Watchdog is the part of the hardware watchdog used here.
type Watchdog interface {
	Clear()
}

// Bootloader is the bootloader main controller.
type Bootloader struct {
	Node     *node.Node
	Updater  *flash.Updater
	Verifier *signature.Verifier
	Keys     flash.Keys
	Watchdog Watchdog
	Revision string
	// Interval is the length of one keep-alive unit.
	Interval time.Duration

	keepAlive int
	lastTick  time.Time
}

// New creates a Bootloader. Keys are read from flash once here.
func New(n *node.Node, updater *flash.Updater, verifier *signature.Verifier) (*Bootloader, error) {
	keys, err := flash.ReadKeys(updater.Flash, updater.Map)
	if err != nil {
		return nil, err
	}
	b := &Bootloader{
		Node:      n,
		Updater:   updater,
		Verifier:  verifier,
		Keys:      keys,
		Interval:  LoopInterval,
		keepAlive: CommandWatchdogDelay,
	}
	n.Table = b.Table()
	return b, nil
}

// Table creates the bootloader command table.
func (b *Bootloader) Table() *node.Table {
	return node.NewTable().
		On(protocol.OpBootloaderPing, b.ping).
		On(protocol.OpBootloaderErase, b.erase).
		On(protocol.OpBootloaderWritePage, b.writePage)
}

// KeepAlive is the remaining number of intervals before the bootloader
// gives up waiting for commands.
func (b *Bootloader) KeepAlive() int {
	return b.keepAlive
}

// Run sends the boot banner and runs the wait loop. It returns ErrBootApp
// once a valid application may be started.
func (b *Bootloader) Run(ctx context.Context, runnables ...fx.Runnable) error {
	if err := b.Node.Logf("OpenLST BL %s", b.Revision); err != nil {
		glog.Warningf("bootloader: banner: %v", err)
	}
	glog.Infof("bootloader: hwid %s waiting for commands", b.Node.HWID)
	loop := fx.NewLoop()
	loop.Interval = b.Interval
	loop.Add(b.Node)
	loop.AddController(fx.PrLvPostProc, b)
	loop.AddRunnable(runnables...)
	b.lastTick = time.Time{}
	b.resetKeepAlive()
	return loop.Run(ctx)
}

// Control implements framework.Controller. It counts down the keep-alive
// by the intervals elapsed since the previous iteration.
func (b *Bootloader) Control(cc fx.ControlContext) error {
	now := cc.Time()
	elapsed := 1
	if !b.lastTick.IsZero() && b.Interval > 0 {
		elapsed = int(now.Sub(b.lastTick) / b.Interval)
	}
	if elapsed == 0 {
		return nil
	}
	b.lastTick = now
	b.keepAlive -= elapsed
	if b.keepAlive > 0 {
		return nil
	}
	return b.Expire()
}

// Expire is called when the keep-alive runs out. It returns an exit error
// wrapping ErrBootApp if the application is valid, otherwise it keeps
// waiting.
func (b *Bootloader) Expire() error {
	if b.Verifier.Valid(b.Updater.Flash, b.Keys) {
		glog.Info("bootloader: application valid, booting")
		return fx.Exit(ErrBootApp)
	}
	glog.V(2).Info("bootloader: no valid application")
	b.resetKeepAlive()
	return nil
}

func (b *Bootloader) resetKeepAlive() {
	b.setKeepAlive(CommandWatchdogDelay)
}

func (b *Bootloader) setKeepAlive(v int) {
	b.keepAlive = v
	if b.Watchdog != nil {
		b.Watchdog.Clear()
	}
}

func (b *Bootloader) ping(ctx context.Context, cmd, reply *protocol.Message) int {
	b.resetKeepAlive()
	return node.ReplyWith(reply, protocol.OpBootloaderAck, &protocol.BootloaderAck{Code: protocol.BootloaderAckPong})
}

func (b *Bootloader) erase(ctx context.Context, cmd, reply *protocol.Message) int {
	if err := b.Updater.EraseApp(); err != nil {
		glog.Errorf("bootloader: erase: %v", err)
		return node.Reply(reply, protocol.OpBootloaderNack)
	}
	b.resetKeepAlive()
	return node.ReplyWith(reply, protocol.OpBootloaderAck, &protocol.BootloaderAck{Code: protocol.BootloaderAckErased})
}

func (b *Bootloader) writePage(ctx context.Context, cmd, reply *protocol.Message) int {
	var page protocol.WritePage
	if err := protocol.Unpack(cmd.Data, &page); err != nil {
		return node.Reply(reply, protocol.OpBootloaderNack)
	}
	if page.Page == FinalPage && len(page.Data) == 0 {
		b.finish()
		return node.ReplyWith(reply, protocol.OpBootloaderAck, &protocol.BootloaderAck{Code: page.Page})
	}
	if err := b.Updater.WritePage(int(page.Page), page.Data); err != nil {
		glog.Warningf("bootloader: write page %d: %v", page.Page, err)
		return node.Reply(reply, protocol.OpBootloaderNack)
	}
	if page.Page == FinalPage {
		b.finish()
	} else {
		b.resetKeepAlive()
	}
	return node.ReplyWith(reply, protocol.OpBootloaderAck, &protocol.BootloaderAck{Code: page.Page})
}

func (b *Bootloader) finish() {
	if b.Verifier.Valid(b.Updater.Flash, b.Keys) {
		glog.Info("bootloader: transfer complete, application valid")
		b.setKeepAlive(FinalPageDelay)
		return
	}
	glog.Warning("bootloader: transfer complete, signature invalid")
}
