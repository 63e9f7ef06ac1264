// Package sim runs a simulated node. The node starts in the bootloader,
// moves on to the application once a valid image is present and starts
// over after every reset.
package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/app"
	"github.com/robotalks/lst.go/pkg/bootloader"
	"github.com/robotalks/lst.go/pkg/env/device"
	"github.com/robotalks/lst.go/pkg/flash"
	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/node"
	"github.com/robotalks/lst.go/pkg/schedule"
	"github.com/robotalks/lst.go/pkg/telemetry"
	"github.com/robotalks/lst.go/pkg/watchdog"
)

// Stage is what the node is running.
type Stage int

// Stages.
const (
	StageBootloader Stage = iota
	StageApplication
)

func (s Stage) String() string {
	if s == StageApplication {
		return "application"
	}
	return "bootloader"
}

// Device is a simulated node on the hardware of an Env.
type Device struct {
	Env             *device.Env
	Revision        string
	WatchdogTimeout time.Duration
	// OnStage is called whenever a stage starts.
	OnStage func(Stage)

	resets int32
}

// New creates a Device.
func New(e *device.Env) *Device {
	return &Device{
		Env:             e,
		Revision:        e.Config.Revision,
		WatchdogTimeout: watchdog.DefaultTimeout,
	}
}

// Resets is the number of resets so far.
func (d *Device) Resets() int {
	return int(atomic.LoadInt32(&d.resets))
}

// Run implements Runnable. It keeps booting until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	for {
		err := d.boot(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != watchdog.ErrReset {
			return err
		}
		glog.Infof("sim: reset #%d", atomic.AddInt32(&d.resets, 1))
	}
}

func (d *Device) stage(s Stage) {
	glog.Infof("sim: %s starting", s)
	if d.OnStage != nil {
		d.OnStage(s)
	}
}

func (d *Device) boot(ctx context.Context) error {
	n, err := d.Env.NewBootloaderNode()
	if err != nil {
		return err
	}
	wd := watchdog.New(d.WatchdogTimeout)
	updater := flash.NewUpdater(d.Env.Map, d.Env.Flash, n.Guard)
	bl, err := bootloader.New(n, updater, d.Env.Verifier)
	if err != nil {
		return err
	}
	bl.Watchdog, bl.Revision = wd, d.Revision
	d.stage(StageBootloader)
	err = bl.Run(ctx, fx.NamedRun("watchdog", wd))
	if serr := d.Env.Flash.Sync(); serr != nil {
		glog.Warningf("sim: flash sync: %v", serr)
	}
	if err != bootloader.ErrBootApp {
		return err
	}
	return d.runApp(ctx)
}

func (d *Device) runApp(ctx context.Context) error {
	// the ports of the bootloader closed with its loop.
	n, err := d.Env.NewNode()
	if err != nil {
		return err
	}
	wd := watchdog.New(d.WatchdogTimeout)
	a := app.New(n, schedule.New(n.Guard), wd)
	a.Revision = d.Revision
	a.ADC = &node.SimADC{}
	runnables := []fx.Runnable{fx.NamedRun("watchdog", wd)}
	pub := d.Env.NewPublisher(func() telemetry.Snapshot {
		return telemetry.Snapshot{HWID: n.HWID, Callsign: a.Callsign(), Telemetry: a.Telemetry()}
	})
	if pub != nil {
		runnables = append(runnables, fx.NamedRun("telemetry", pub))
	}
	d.stage(StageApplication)
	return a.Run(ctx, runnables...)
}
