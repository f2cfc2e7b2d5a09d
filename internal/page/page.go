// Package page runs the page states of one browser session: a single
// event loop owns the registry and the orchestrator, the backend transport
// posts results into the loop, and rendered regions are published for SSE
// streams to read.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/leapstack-labs/ballotbox/internal/metrics"
	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

var (
	// ErrNotReady reports a submission rejected by the readiness predicate.
	// Nothing was sent.
	ErrNotReady = errors.New("page: selection not ready")

	// ErrClosed reports a call on a page whose loop has stopped.
	ErrClosed = errors.New("page: closed")
)

// Selection maps question ids to the chosen answer ids.
type Selection map[string][]string

// Readiness validates a selection against the artifacts cached by the
// voting page state.
type Readiness func(results map[string]pagestate.Artifact, sel Selection) error

// Ballot builds the vote request for a ready selection.
type Ballot func(ctx context.Context, a Actions, ps *pagestate.PageState, sel Selection) (core.Request, error)

// Fragment is a rendered result.
type Fragment struct {
	// Target is the element id to patch. Empty means the page state's
	// container.
	Target    string
	Component templ.Component
	Artifact  pagestate.Artifact
}

// View renders results of one query.
type View interface {
	Render(container string, payload core.Payload) (Fragment, error)
}

// ViewFunc adapts a function to View.
type ViewFunc func(container string, payload core.Payload) (Fragment, error)

// Render implements View.
func (f ViewFunc) Render(container string, payload core.Payload) (Fragment, error) {
	return f(container, payload)
}

// Actions is what hooks may do to the page. Calls are made on the page loop
// and take effect immediately.
type Actions interface {
	// SessionID identifies the browser session that owns the page.
	SessionID() string
	// Activate starts a page state and advances it.
	Activate(ctx context.Context, section, name string, seeds ...[]core.Condition) error
	// Dispatch sends a query outside any page state. Its result goes to
	// the fallback registered for the query.
	Dispatch(ctx context.Context, req core.Request) error
	// Publish replaces the content of element id inside container.
	Publish(container, id string, c templ.Component)
	// Current returns the page state last activated in section.
	Current(section string) (*pagestate.PageState, bool)
}

// FallbackFunc handles a result no active page state was waiting for.
type FallbackFunc func(ctx context.Context, a Actions, res core.Result) error

// ResolvedFunc runs when a non-isolated page state completes.
type ResolvedFunc func(ctx context.Context, a Actions, ps *pagestate.PageState)

// Options configures a Page.
type Options struct {
	SessionID   string
	Definitions []pagestate.Definition
	// Views maps query names to the view rendering their results.
	Views map[string]View
	// Shells maps containers to the markup they show on activation.
	Shells    map[string]templ.Component
	Fallbacks map[string]FallbackFunc
	Resolved  ResolvedFunc

	// VoteSection names the section whose current page state holds the
	// ballot.
	VoteSection string
	Readiness   Readiness
	Ballot      Ballot

	// ErrorTarget is the element that shows backend errors.
	ErrorTarget string
	ErrorView   func(err error) templ.Component

	Doer      rpc.Doer
	InboxSize int
	Logger    *slog.Logger
}

// Page is the runtime of one browser session.
type Page struct {
	id       string
	opts     Options
	reg      *pagestate.Registry
	orch     *pagestate.Orchestrator
	dispatch *rpc.Dispatcher
	regions  *Regions
	logger   *slog.Logger

	inbox chan func(context.Context)
	done  chan struct{}
}

// New builds a page. Run must be called to process events.
func New(opts Options) (*Page, error) {
	if opts.Doer == nil {
		return nil, errors.New("page needs a backend")
	}
	reg, err := pagestate.NewRegistry(opts.Definitions...)
	if err != nil {
		return nil, err
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.New().String()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.ErrorView == nil {
		opts.ErrorView = ErrorView
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("session", opts.SessionID))

	p := &Page{
		id:      opts.SessionID,
		opts:    opts,
		reg:     reg,
		regions: NewRegions(),
		logger:  logger,
		inbox:   make(chan func(context.Context), opts.InboxSize),
		done:    make(chan struct{}),
	}
	p.dispatch = rpc.NewDispatcher(opts.Doer, p.onResponse)

	renderers := make(map[string]pagestate.Renderer, len(opts.Views))
	for query, view := range opts.Views {
		renderers[query] = p.renderer(view)
	}
	fallbacks := make(map[string]pagestate.FallbackFunc, len(opts.Fallbacks))
	for query, fb := range opts.Fallbacks {
		fallbacks[query] = func(ctx context.Context, res core.Result) error {
			return fb(ctx, p, res)
		}
	}
	var resolved func(context.Context, *pagestate.PageState)
	if opts.Resolved != nil {
		resolved = func(ctx context.Context, ps *pagestate.PageState) {
			opts.Resolved(ctx, p, ps)
		}
	}
	p.orch = pagestate.NewOrchestrator(pagestate.Config{
		Transport: p.dispatch,
		Renderers: renderers,
		Fallbacks: fallbacks,
		Resolved:  resolved,
		Logger:    logger,
	})
	return p, nil
}

// SessionID implements Actions.
func (p *Page) SessionID() string { return p.id }

// Regions returns the rendered regions of the page.
func (p *Page) Regions() *Regions { return p.regions }

// Run processes events until ctx is cancelled. In-flight requests are
// awaited before Run returns.
func (p *Page) Run(ctx context.Context) error {
	metrics.ActivePages.Inc()
	defer metrics.ActivePages.Dec()
	defer p.regions.close()

	p.logger.Debug("page loop started")
	for {
		select {
		case <-ctx.Done():
			close(p.done)
			p.dispatch.Wait()
			p.logger.Debug("page loop stopped")
			return nil
		case ev := <-p.inbox:
			ev(ctx)
		}
	}
}

// Done is closed when the loop stops.
func (p *Page) Done() <-chan struct{} { return p.done }

// post queues ev for the loop.
func (p *Page) post(ctx context.Context, ev func(context.Context)) error {
	select {
	case p.inbox <- ev:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and waits for its error.
func (p *Page) call(ctx context.Context, fn func(context.Context) error) error {
	reply := make(chan error, 1)
	if err := p.post(ctx, func(loopCtx context.Context) { reply <- fn(loopCtx) }); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open activates a page state from outside the loop and waits until its
// first query is dispatched.
func (p *Page) Open(ctx context.Context, section, name string, seeds ...[]core.Condition) error {
	return p.call(ctx, func(loopCtx context.Context) error {
		return p.Activate(loopCtx, section, name, seeds...)
	})
}

// Activate implements Actions. It must run on the loop.
func (p *Page) Activate(ctx context.Context, section, name string, seeds ...[]core.Condition) error {
	ps, err := p.reg.Activate(section, name, seeds...)
	if err != nil {
		return err
	}
	p.logger.Debug("page state activated", slog.String("state", ps.String()), slog.Uint64("generation", ps.Generation()))
	if ps.Container != "" {
		p.regions.Reset(ps.Container, p.opts.Shells[ps.Container])
	}
	return p.orch.Advance(ctx, ps)
}

// Dispatch implements Actions.
func (p *Page) Dispatch(ctx context.Context, req core.Request) error {
	if req.Ticket == "" {
		req.Ticket = uuid.New().String()
	}
	p.logger.Debug("dispatching decoupled query", slog.String("query", req.Query))
	return p.dispatch.Send(ctx, req)
}

// Publish implements Actions.
func (p *Page) Publish(container, id string, c templ.Component) {
	p.regions.Publish(container, id, c)
}

// Current implements Actions.
func (p *Page) Current(section string) (*pagestate.PageState, bool) {
	return p.reg.Current(section)
}

// Deliver hands a backend result to the loop.
func (p *Page) Deliver(ctx context.Context, res core.Result) error {
	return p.post(ctx, func(loopCtx context.Context) { p.route(loopCtx, res) })
}

// Submit validates sel against the current voting page state and sends
// the ballot. A selection that fails readiness returns ErrNotReady and
// sends nothing.
func (p *Page) Submit(ctx context.Context, sel Selection) error {
	return p.call(ctx, func(loopCtx context.Context) error {
		ps, ok := p.reg.Current(p.opts.VoteSection)
		if !ok {
			return fmt.Errorf("%w: nothing to vote on", ErrNotReady)
		}
		if ps.Active() {
			return fmt.Errorf("%w: %s is still loading", ErrNotReady, ps)
		}
		if p.opts.Readiness != nil {
			if err := p.opts.Readiness(ps.Results(), sel); err != nil {
				return fmt.Errorf("%w: %w", ErrNotReady, err)
			}
		}
		if p.opts.Ballot == nil {
			return errors.New("page has no ballot")
		}
		req, err := p.opts.Ballot(loopCtx, p, ps, sel)
		if err != nil {
			return err
		}
		return p.Dispatch(loopCtx, req)
	})
}

// Inspect runs fn on the loop with read access to the registry.
func (p *Page) Inspect(ctx context.Context, fn func(reg *pagestate.Registry)) error {
	return p.call(ctx, func(context.Context) error {
		fn(p.reg)
		return nil
	})
}

func (p *Page) renderer(view View) pagestate.Renderer {
	return pagestate.RenderFunc(func(container string, payload core.Payload) (pagestate.Artifact, error) {
		frag, err := view.Render(container, payload)
		if err != nil {
			return pagestate.Artifact{}, err
		}
		target := frag.Target
		if target == "" {
			target = container
		}
		if frag.Component != nil {
			p.regions.Publish(container, target, frag.Component)
		}
		return frag.Artifact, nil
	})
}

// onResponse runs on transport goroutines.
func (p *Page) onResponse(req core.Request, res core.Result, err error) {
	ev := func(ctx context.Context) { p.route(ctx, res) }
	if err != nil {
		ev = func(context.Context) { p.fail(req, err) }
	}
	select {
	case p.inbox <- ev:
	case <-p.done:
	}
}

func (p *Page) route(ctx context.Context, res core.Result) {
	err := p.orch.Route(ctx, p.reg, res)
	switch {
	case err == nil:
	case errors.Is(err, pagestate.ErrUnhandledResult):
		// Logged by the orchestrator.
	default:
		p.logger.Error("result handling failed", slog.String("query", res.Query), slog.Any("error", err))
		p.showError(err)
	}
}

func (p *Page) fail(req core.Request, err error) {
	var serverErr *rpc.ServerError
	if errors.As(err, &serverErr) {
		p.logger.Warn("backend error", slog.String("query", req.Query), slog.String("message", serverErr.Message))
	} else {
		p.logger.Error("backend request failed", slog.String("query", req.Query), slog.Any("error", err))
	}
	p.showError(err)
}

// Report shows err in the page's error region. It is safe to call from
// any goroutine.
func (p *Page) Report(err error) {
	p.showError(err)
}

func (p *Page) showError(err error) {
	if p.opts.ErrorTarget == "" {
		return
	}
	p.regions.Publish(p.opts.ErrorTarget, p.opts.ErrorTarget, p.opts.ErrorView(err))
}
