package page

import "sync"

// broadcaster pings every subscriber when regions change. Subscribers
// receive an empty struct and re-read the region store; pings that find a
// full buffer are dropped since one pending ping covers any number of
// changes.
type broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
	closed    bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[chan struct{}]struct{})}
}

// subscribe returns a ping channel and the function that releases it. The
// channel is closed when the broadcaster is closed.
func (b *broadcaster) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.listeners[ch]; ok {
				delete(b.listeners, ch)
				close(ch)
			}
		})
	}
}

func (b *broadcaster) broadcast() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// close ends every subscription.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}

func (b *broadcaster) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
