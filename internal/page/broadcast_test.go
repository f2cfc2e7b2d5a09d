package page

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SubscribeRelease(t *testing.T) {
	b := newBroadcaster()

	ch, release := b.subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, b.len())

	release()
	assert.Equal(t, 0, b.len())
	_, open := <-ch
	assert.False(t, open)

	// Releasing twice is harmless.
	release()
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := newBroadcaster()

	ch1, release1 := b.subscribe()
	ch2, release2 := b.subscribe()
	defer release1()
	defer release2()

	b.broadcast()

	for i, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("listener %d did not receive broadcast", i+1)
		}
	}
}

func TestBroadcaster_BroadcastCoalesces(t *testing.T) {
	b := newBroadcaster()
	ch, release := b.subscribe()
	defer release()

	done := make(chan struct{})
	go func() {
		b.broadcast()
		b.broadcast()
		b.broadcast()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("broadcast blocked on full channel")
	}

	<-ch
	select {
	case <-ch:
		t.Error("pings should coalesce into one")
	default:
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := newBroadcaster()
	ch, release := b.subscribe()

	b.close()
	_, open := <-ch
	assert.False(t, open)
	release()

	late, _ := b.subscribe()
	_, open = <-late
	assert.False(t, open, "subscriptions after close are already closed")
	b.broadcast()
	b.close()
}

func TestBroadcaster_Concurrent(t *testing.T) {
	b := newBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := b.subscribe()
			b.broadcast()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.len())
}
