// Package irq models interrupt masking for state shared between interrupt
// producers (goroutines standing in for ISRs) and the main loop.
package irq

import "sync"

// Guard is a critical section. While held, no producer sharing the same
// Guard can run.
type Guard struct {
	mu sync.Mutex
}

// Critical runs fn with interrupts masked.
func (g *Guard) Critical(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
