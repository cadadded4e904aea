package attach

import "sync"

// Cell is an observable numeric value. The send pipeline is the only writer
// during an upload; the UI layer is the only reader. Subscribers are
// notified on change with non-blocking sends, so a slow reader only misses
// intermediate values, never the final one it can read with Value.
type Cell struct {
	mu    sync.Mutex
	value float64
	subs  map[int]chan float64
	next  int
}

// NewCell creates a cell holding 0.
func NewCell() *Cell {
	return &Cell{subs: make(map[int]chan float64)}
}

// Value returns the current value.
func (c *Cell) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v and publishes it to subscribers. Setting the current value
// again publishes nothing.
func (c *Cell) Set(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == c.value {
		return
	}
	c.value = v
	for _, ch := range c.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel receiving value changes and an unsubscribe
// function.
func (c *Cell) Subscribe(bufSize int) (<-chan float64, func()) {
	ch := make(chan float64, bufSize)
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
