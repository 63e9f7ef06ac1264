package flash

import (
	"runtime"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/irq"
)

// Updater erases and programs the application region. Every operation
// runs with the guard held, so nothing else on the node runs until the
// flash controller is idle again.
type Updater struct {
	Map   Map
	Flash Controller
	Guard *irq.Guard
}

// NewUpdater creates an Updater.
func NewUpdater(m Map, f Controller, guard *irq.Guard) *Updater {
	if guard == nil {
		guard = &irq.Guard{}
	}
	return &Updater{Map: m, Flash: f, Guard: guard}
}

// EraseApp erases every page of the application region.
func (u *Updater) EraseApp() (err error) {
	glog.Infof("flash: erase 0x%04x-0x%04x", u.Map.AppStart, u.Map.AppEnd)
	for addr := u.Map.AppStart; addr <= u.Map.AppEnd && err == nil; addr += ErasePageSize {
		u.Guard.Critical(func() {
			u.waitIdle()
			if err = u.Flash.TriggerErase(addr); err == nil {
				u.waitIdle()
			}
		})
	}
	return
}

// WritePage programs write page index page.
func (u *Updater) WritePage(page int, data []byte) (err error) {
	if len(data) != WritePageSize {
		return ErrPageSize
	}
	addr := page * WritePageSize
	switch {
	case addr < u.Map.AppStart:
		return ErrProtected
	case addr+WritePageSize <= u.Map.AppEnd+1:
	case addr+WritePageSize <= u.Map.Size:
		return ErrProtected
	default:
		return ErrBadAddr
	}
	glog.V(2).Infof("flash: write page %d at 0x%04x", page, addr)
	u.Guard.Critical(func() {
		u.waitIdle()
		if err = u.Flash.TriggerWrite(addr, data); err == nil {
			u.waitIdle()
		}
	})
	return
}

func (u *Updater) waitIdle() {
	for u.Flash.Busy() {
		runtime.Gosched()
	}
}
