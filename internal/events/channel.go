package events

// Channel is a FIFO of Events. Single-producer-single-consumer within the
// core driver thread; a buffered Go channel already gives the required
// thread-safety when a live data source feeds it from a background
// goroutine, so no extra mutex is layered on top here.
type Channel struct {
	ch chan Event
}

// NewChannel creates a Channel with the given buffer capacity.
func NewChannel(capacity int) *Channel {
	return &Channel{ch: make(chan Event, capacity)}
}

// Push enqueues an event. Blocks if the channel is full.
func (c *Channel) Push(e Event) {
	c.ch <- e
}

// TryPop returns the next event without blocking, or ok=false if empty.
func (c *Channel) TryPop() (Event, bool) {
	select {
	case e := <-c.ch:
		return e, true
	default:
		return Event{}, false
	}
}

// IsEmpty reports whether the channel currently has no buffered events.
// Racy by nature for multi-producer use; the driver only relies on it to
// decide whether to keep pulling from try_pop in a single consuming loop.
func (c *Channel) IsEmpty() bool {
	return len(c.ch) == 0
}
