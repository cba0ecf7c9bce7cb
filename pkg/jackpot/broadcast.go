package jackpot

import (
	"context"
	"sync"
)

// Broadcaster fans updates out to every listener.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan Update]struct{}
	buffer    int
}

// NewBroadcaster creates a broadcaster whose listeners buffer up to buffer
// updates.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster{
		listeners: make(map[chan Update]struct{}),
		buffer:    buffer,
	}
}

// Send publishes an update to all listeners. Slow listeners miss it.
func (b *Broadcaster) Send(update Update) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for ch := range b.listeners {
		select {
		case ch <- update:
			delivered++
		default:
		}
	}
	return delivered
}

// Listen returns a channel plus a cancel function to stop listening. The
// channel is closed once ctx is done or cancel is called.
func (b *Broadcaster) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Update, b.buffer)

	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-listenerCtx.Done()
		b.mu.Lock()
		delete(b.listeners, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, cancel
}

// Listeners returns the number of active listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
