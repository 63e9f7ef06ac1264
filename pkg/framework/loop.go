package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop is a single threaded cooperative main loop. Each iteration runs all
// controllers by priority level. An iteration starts on every Interval tick
// or as soon as TriggerNext is called.
type Loop struct {
	Interval time.Duration

	controllers [PriorityLevels]controllerList

	runners []Runnable

	iterations uint64
	wakeUpCh   chan struct{}
	once       sync.Once
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopCtl struct {
	*Loop
}

type loopIteration struct {
	loopCtl
	ctx           context.Context
	time          time.Time
	priorityLevel int
	iteration     uint64
}

type controllerList struct {
	preHooks    []Controller
	controllers []Controller
	postHooks   []Controller
	lock        sync.Mutex
}

var (
	loopCtxKey = &Loop{}
)

// LoopCtlFrom gets LoopCtl from context.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// CtlCtxFrom gets ControlContext from context.
func CtlCtxFrom(ctx context.Context) ControlContext {
	return ctx.Value(loopCtxKey).(ControlContext)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: 100 * time.Millisecond}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lst := &l.controllers[priorityLevel]
	lst.controllers = append(lst.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions which run along with the loop.
// These are the interrupt sources.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It returns when the context is done, when a
// runner fails or when a controller returns an ExitError.
func (l *Loop) Run(ctx context.Context) error {
	l.init()
	ctx, cancel := context.WithCancel(ctx)

	failCh := make(chan error, 1)
	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, &loopCtl{l}))
	for _, r := range l.runners {
		runner.Go(&watchedRunnable{Runnable: r, failCh: failCh})
	}
	defer func() {
		cancel()
		runner.Wait()
	}()

	interval := l.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failCh:
			return err
		case <-ticker.C:
			if err := l.runIteration(ctx); err != nil {
				return err
			}
		case <-l.wakeUpCh:
			if err := l.runIteration(ctx); err != nil {
				return err
			}
		}
	}
}

// PreRunAt implements LoopCtl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.controllers[priorityLevel]
	lst.lock.Lock()
	lst.preHooks = append(lst.preHooks, hooks...)
	lst.lock.Unlock()
}

// PostRunAt implements LoopCtl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.controllers[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, hooks...)
	lst.lock.Unlock()
}

// TriggerNext implements LoopCtl. It is safe to call from any goroutine.
func (l *Loop) TriggerNext() {
	l.init()
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) init() {
	l.once.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
}

func (l *Loop) runIteration(ctx context.Context) error {
	l.iterations++
	iter := &loopIteration{loopCtl: loopCtl{l}, time: time.Now(), iteration: l.iterations}
	iter.ctx = context.WithValue(ctx, loopCtxKey, iter)
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		if err := l.controllers[i].run(iter); err != nil {
			return err
		}
	}
	return nil
}

// watchedRunnable reports the failure of an interrupt source to the loop.
type watchedRunnable struct {
	Runnable
	failCh chan error
}

func (r *watchedRunnable) Name() string {
	if named, ok := r.Runnable.(Named); ok {
		return named.Name()
	}
	return "runnable"
}

func (r *watchedRunnable) Run(ctx context.Context) error {
	err := r.Runnable.Run(ctx)
	if err != nil && err != context.Canceled {
		select {
		case r.failCh <- err:
		default:
		}
	}
	return err
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (t *loopIteration) Iteration() uint64 {
	return t.iteration
}

func (t *loopIteration) PostRun(hooks ...Controller) {
	t.PostRunAt(t.priorityLevel, hooks...)
}

func (c *controllerList) run(iter *loopIteration) error {
	c.lock.Lock()
	ctls := c.preHooks
	c.preHooks = nil
	c.lock.Unlock()
	if err := runControllers(iter, ctls); err != nil {
		return err
	}
	if err := runControllers(iter, c.controllers); err != nil {
		return err
	}
	c.lock.Lock()
	ctls, c.postHooks = c.postHooks, nil
	c.lock.Unlock()
	return runControllers(iter, ctls)
}

func runControllers(iter *loopIteration, ctls []Controller) error {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			if exit, ok := err.(*ExitError); ok {
				return exit.Err
			}
			glog.Errorf("controller error: %v", err)
		}
	}
	return nil
}
