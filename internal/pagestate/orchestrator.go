package pagestate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/leapstack-labs/ballotbox/internal/metrics"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Transport dispatches requests to the backend. Send must return once the
// request is on its way; the result comes back later through OnResult.
type Transport interface {
	Send(ctx context.Context, req core.Request) error
}

// Renderer turns a result into markup for container and returns the
// artifact to cache. It runs synchronously inside OnResult.
type Renderer interface {
	Render(container string, payload core.Payload) (Artifact, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(container string, payload core.Payload) (Artifact, error)

// Render implements Renderer.
func (f RenderFunc) Render(container string, payload core.Payload) (Artifact, error) {
	return f(container, payload)
}

// FallbackFunc handles results that belong to no active step.
type FallbackFunc func(ctx context.Context, res core.Result) error

// Config configures an Orchestrator.
type Config struct {
	Transport Transport
	// Renderers maps query names to the renderer of their results.
	Renderers map[string]Renderer
	// Fallbacks maps query names to handlers for results outside any cycle.
	Fallbacks map[string]FallbackFunc
	// Resolved runs when a non-isolated PageState completes its cycle.
	Resolved func(ctx context.Context, ps *PageState)
	// NewTicket names dispatches. Defaults to random UUIDs.
	NewTicket func() string
	Logger    *slog.Logger
}

// Orchestrator advances PageStates and correlates their results.
type Orchestrator struct {
	transport Transport
	renderers map[string]Renderer
	fallbacks map[string]FallbackFunc
	resolved  func(ctx context.Context, ps *PageState)
	newTicket func() string
	keys      *keyEvaluator
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		transport: cfg.Transport,
		renderers: cfg.Renderers,
		fallbacks: cfg.Fallbacks,
		resolved:  cfg.Resolved,
		newTicket: cfg.NewTicket,
		keys:      newKeyEvaluator(),
		logger:    cfg.Logger,
	}
	if o.renderers == nil {
		o.renderers = make(map[string]Renderer)
	}
	if o.fallbacks == nil {
		o.fallbacks = make(map[string]FallbackFunc)
	}
	if o.newTicket == nil {
		o.newTicket = func() string { return uuid.New().String() }
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Advance performs the next unit of work of ps: dispatch its pending query,
// or finish the cycle. It does nothing while a query is in flight or when
// ps is inactive. A protocol violation aborts the cycle.
func (o *Orchestrator) Advance(ctx context.Context, ps *PageState) error {
	eff, err := ps.apply(Advance{NewTicket: o.newTicket})
	if err != nil {
		ps.deactivate()
		metrics.ProtocolViolations.Inc()
		o.logger.Error("page state cycle aborted", slog.String("state", ps.String()), slog.Any("error", err))
		return err
	}

	switch eff := eff.(type) {
	case Dispatch:
		req := eff.Request
		o.logger.Debug("dispatching query",
			slog.String("state", ps.String()),
			slog.String("query", req.Query),
			slog.Bool("filtered", req.Condition != nil),
			slog.Bool("replace", req.Replace),
			slog.String("ticket", req.Ticket))
		metrics.DispatchesTotal.WithLabelValues(ps.Section, req.Query).Inc()
		if o.transport == nil {
			return fmt.Errorf("dispatch %s for %s: no transport", req.Query, ps)
		}
		if err := o.transport.Send(ctx, req); err != nil {
			return fmt.Errorf("dispatch %s for %s: %w", req.Query, ps, err)
		}
	case Completed:
		ps.resolved = ps.snap.Generation
		o.logger.Debug("page state resolved", slog.String("state", ps.String()))
		metrics.CyclesCompleted.WithLabelValues(ps.Section, ps.Name).Inc()
		if !ps.Isolated && o.resolved != nil {
			o.resolved(ctx, ps)
		}
	}
	return nil
}

// Accepts reports whether res answers the query ps is waiting for.
func (o *Orchestrator) Accepts(ps *PageState, res core.Result) bool {
	_, eff, err := Reduce(ps.snap, Deliver{Query: res.Query, Ticket: res.Ticket})
	if err != nil {
		return false
	}
	_, ok := eff.(Matched)
	return ok
}

// OnResult applies res to ps when it answers the query ps is waiting for:
// the step is delivered, the result rendered and cached, and ps advanced.
// Any other result is handed to the fallback registered for its query.
func (o *Orchestrator) OnResult(ctx context.Context, ps *PageState, res core.Result) error {
	eff, err := ps.apply(Deliver{Query: res.Query, Ticket: res.Ticket})
	if err != nil {
		return err
	}
	m, ok := eff.(Matched)
	if !ok {
		if rej, isRej := eff.(Rejected); isRej {
			o.logger.Debug("result not applied",
				slog.String("state", ps.String()),
				slog.String("query", res.Query),
				slog.String("reason", rej.Reason))
		}
		return o.Fallback(ctx, res)
	}
	metrics.ResultsTotal.WithLabelValues(res.Query, metrics.OutcomeMatched).Inc()

	renderErr := o.collect(ps, ps.snap.Steps[m.Step], m.Condition, res.Payload)
	return errors.Join(renderErr, o.Advance(ctx, ps))
}

// Route hands res to whichever active PageState of reg awaits it, or to
// the fallbacks.
func (o *Orchestrator) Route(ctx context.Context, reg *Registry, res core.Result) error {
	for _, ps := range reg.ActiveStates() {
		if o.Accepts(ps, res) {
			return o.OnResult(ctx, ps, res)
		}
	}
	return o.Fallback(ctx, res)
}

// Fallback dispatches res by query name alone.
func (o *Orchestrator) Fallback(ctx context.Context, res core.Result) error {
	fb, ok := o.fallbacks[res.Query]
	if !ok {
		metrics.ResultsTotal.WithLabelValues(res.Query, metrics.OutcomeUnhandled).Inc()
		o.logger.Warn("unhandled result", slog.String("query", res.Query), slog.String("ticket", res.Ticket))
		return fmt.Errorf("%w: %q", ErrUnhandledResult, res.Query)
	}
	metrics.ResultsTotal.WithLabelValues(res.Query, metrics.OutcomeFallback).Inc()
	return fb(ctx, res)
}

// collect renders a delivered result, caches the artifact and applies the
// conditions it reveals.
func (o *Orchestrator) collect(ps *PageState, step QueryStep, cond *core.Condition, payload core.Payload) error {
	r, ok := o.renderers[step.Name]
	if !ok {
		return nil
	}
	art, err := r.Render(ps.Container, payload)
	if err != nil {
		o.logger.Error("render failed", slog.String("state", ps.String()), slog.String("query", step.Name), slog.Any("error", err))
		return fmt.Errorf("render %s: %w", step.Name, err)
	}

	key, err := o.keys.key(step, cond, payload, art)
	if err != nil {
		return err
	}
	ps.cache[key] = art

	queries := make([]string, 0, len(art.Reveal))
	for q := range art.Reveal {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	var errs []error
	for _, q := range queries {
		if _, err := ps.apply(Reveal{Query: q, Conditions: art.Reveal[q]}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
