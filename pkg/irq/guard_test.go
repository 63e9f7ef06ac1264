package irq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardConcurrentProducers(t *testing.T) {
	var guard Guard
	var count uint32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				guard.Critical(func() { count++ })
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 8000, count)
}
