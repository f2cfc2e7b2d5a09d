package page

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"
)

// Region is one rendered element of a page, addressed by its element id.
// Rendering a Region writes a div carrying the id around the component,
// so patches morph it in place.
type Region struct {
	ID        string
	Owner     string
	Version   uint64
	Component templ.Component
}

// Render implements templ.Component.
func (r Region) Render(ctx context.Context, w io.Writer) error {
	if _, err := io.WriteString(w, `<div id="`+templ.EscapeString(r.ID)+`">`); err != nil {
		return err
	}
	if r.Component != nil {
		if err := r.Component.Render(ctx, w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</div>`)
	return err
}

// Regions holds the rendered regions of a page. The page loop writes it;
// SSE streams read it from their own goroutines.
type Regions struct {
	mu      sync.RWMutex
	version uint64
	byID    map[string]Region
	pings   *broadcaster
}

// NewRegions creates an empty region store.
func NewRegions() *Regions {
	return &Regions{
		byID:  make(map[string]Region),
		pings: newBroadcaster(),
	}
}

// Publish stores c as the content of element id, owned by container owner.
func (r *Regions) Publish(owner, id string, c templ.Component) {
	r.mu.Lock()
	r.version++
	r.byID[id] = Region{ID: id, Owner: owner, Version: r.version, Component: c}
	r.mu.Unlock()
	r.pings.broadcast()
}

// Reset drops every region owned by container and replaces the container
// itself with shell. A nil shell renders an empty container.
func (r *Regions) Reset(container string, shell templ.Component) {
	r.mu.Lock()
	for id, rg := range r.byID {
		if rg.Owner == container {
			delete(r.byID, id)
		}
	}
	r.version++
	r.byID[container] = Region{ID: container, Owner: container, Version: r.version, Component: shell}
	r.mu.Unlock()
	r.pings.broadcast()
}

// Get returns one region.
func (r *Regions) Get(id string) (Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rg, ok := r.byID[id]
	return rg, ok
}

// Since returns the regions changed after version, oldest first, and the
// current version.
func (r *Regions) Since(version uint64) ([]Region, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Region
	for _, rg := range r.byID {
		if rg.Version > version {
			out = append(out, rg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, r.version
}

// Version returns the version of the latest change.
func (r *Regions) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Subscribe returns a channel pinged after every change and a function
// that ends the subscription. The channel is closed when the page closes.
func (r *Regions) Subscribe() (<-chan struct{}, func()) {
	return r.pings.subscribe()
}

// Subscribers returns the number of open subscriptions.
func (r *Regions) Subscribers() int {
	return r.pings.len()
}

func (r *Regions) close() {
	r.pings.close()
}
