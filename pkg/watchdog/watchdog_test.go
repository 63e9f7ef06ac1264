package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpires(t *testing.T) {
	w := New(40 * time.Millisecond)
	start := time.Now()
	require.Equal(t, ErrReset, w.Run(context.Background()))
	require.True(t, time.Since(start) >= 40*time.Millisecond)
}

func TestClearKeepsAlive(t *testing.T) {
	w := New(40 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Clear()
			}
		}
	}()
	require.Equal(t, context.DeadlineExceeded, w.Run(ctx))
}

func TestReboot(t *testing.T) {
	w := New(time.Hour)
	w.Reboot()
	w.Reboot()
	require.Equal(t, ErrReset, w.Run(context.Background()))
}
