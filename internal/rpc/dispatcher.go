package rpc

import (
	"context"
	"sync"

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// DeliverFunc receives the outcome of an asynchronous request.
type DeliverFunc func(req core.Request, res core.Result, err error)

// Dispatcher sends requests in the background and hands each outcome to a
// DeliverFunc. It satisfies pagestate.Transport.
type Dispatcher struct {
	doer    Doer
	deliver DeliverFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over doer.
func NewDispatcher(doer Doer, deliver DeliverFunc) *Dispatcher {
	return &Dispatcher{doer: doer, deliver: deliver}
}

// Send starts req and returns immediately.
func (d *Dispatcher) Send(ctx context.Context, req core.Request) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res, err := d.doer.Do(ctx, req)
		d.deliver(req, res, err)
	}()
	return nil
}

// Wait blocks until every request sent so far has been delivered.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
