package scheduler

import "sync"

// Counter hands out contiguous blocks of global indices starting at 1.
type Counter struct {
	mu   sync.Mutex
	next int
}

// NewCounter returns a counter whose first block starts at 1.
func NewCounter() *Counter {
	return &Counter{next: 1}
}

// Reserve grants n consecutive indices and returns the first one.
func (c *Counter) Reserve(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	first := c.next
	c.next += n
	return first
}
