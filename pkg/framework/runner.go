package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Runner.Wait after a second stop signal.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun gives runnable a name, used in logs and errors.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// RunnableName is the name of r, or its position among the runnables of a
// Runner when it is not Named.
func RunnableName(r Runnable, index int) string {
	if named, ok := r.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("#%d", index)
}

type runResult struct {
	name string
	err  error
}

// Runner starts Runnables in goroutines and collects what they return.
// The transport pumps and stages of a node run under one Runner.
type Runner struct {
	Context context.Context

	names    []string
	resultCh chan runResult
	forcedCh chan struct{}
}

// NewRunner creates a Runner on the background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner on ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context:  ctx,
		resultCh: make(chan runResult, 1),
		forcedCh: make(chan struct{}),
	}
}

// HandleSignals cancels the Context on SIGINT or SIGTERM. A second signal
// makes Wait give up with ErrForcedExit.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		cancel()
		sig = <-sigCh
		glog.Errorf("%v again: forcing exit", sig)
		close(r.forcedCh)
	}()
	return r
}

// Len is the number of Runnables started.
func (r *Runner) Len() int {
	return len(r.names)
}

// Go starts runnables on the Runner's Context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	return r.GoWith(r.Context, runnables...)
}

// GoWith starts runnables on ctx.
func (r *Runner) GoWith(ctx context.Context, runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := RunnableName(runnable, len(r.names))
		r.names = append(r.names, name)
		go r.run(ctx, name, runnable)
	}
	return r
}

func (r *Runner) run(ctx context.Context, name string, runnable Runnable) {
	glog.V(4).Infof("runner: %s started", name)
	err := runnable.Run(ctx)
	glog.V(4).Infof("runner: %s stopped: %v", name, err)
	r.resultCh <- runResult{name: name, err: err}
}

// Wait blocks until every started Runnable returns. Cancellation is not an
// error, anything else is aggregated with the name of the Runnable.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.names {
		select {
		case <-r.forcedCh:
			return ErrForcedExit
		case res := <-r.resultCh:
			if res.err != nil && res.err != context.Canceled {
				errs.Add(fmt.Errorf("%s: %v", res.name, res.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn, which knows nothing about ctx. When ctx is
// done first, onCancel is called to make fn return, and the result is
// context.Canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	doneCh := make(chan error, 1)
	go func() { doneCh <- fn() }()
	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-doneCh
	return context.Canceled
}

// RunWithContext runs fn until it returns, or reports context.Canceled
// once both ctx is done and fn returned.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser runs fn reading from closer, which is closed exactly
// once: on cancel to unblock fn, or after fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() { once.Do(func() { closer.Close() }) }
	defer closeOnce()
	return RunWithContextCancel(ctx, closeOnce, fn)
}
