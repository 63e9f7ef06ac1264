package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

type closeCounter struct {
	closes  int
	unblock chan struct{}
}

func (c *closeCounter) Close() error {
	c.closes++
	if c.unblock != nil {
		close(c.unblock)
		c.unblock = nil
	}
	return nil
}

func TestRunnableName(t *testing.T) {
	r := runFunc(func(context.Context) error { return nil })
	require.Equal(t, "#3", RunnableName(r, 3))
	require.Equal(t, "uart0", RunnableName(NamedRun("uart0", r), 3))
}

func TestRunnerWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunnerWith(ctx)
	runner.Go(
		NamedRun("radio", runFunc(func(context.Context) error { return errors.New("deaf") })),
		runFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		runFunc(func(context.Context) error { return nil }),
	)
	require.Equal(t, 3, runner.Len())
	cancel()
	err := runner.Wait()
	agg, ok := err.(*AggregatedError)
	require.True(t, ok)
	require.Len(t, agg.Errors, 1)
	require.EqualError(t, agg.Errors[0], "radio: deaf")

	require.NoError(t, NewRunner().Wait())
}

func TestRunWithContextCloser(t *testing.T) {
	testCases := []struct {
		name   string
		cancel bool
		err    error
	}{
		{"returns", false, errors.New("eof")},
		{"canceled", true, context.Canceled},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			closer := &closeCounter{unblock: make(chan struct{})}
			unblock := closer.unblock
			fn := func() error {
				if tc.cancel {
					<-unblock
					return errors.New("closed")
				}
				return tc.err
			}
			if tc.cancel {
				cancel()
			}
			require.Equal(t, tc.err, RunWithContextCloser(ctx, closer, fn))
			require.Equal(t, 1, closer.closes)
		})
	}
}
