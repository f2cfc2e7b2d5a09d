package poll

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	voting "github.com/leapstack-labs/ballotbox/internal/poll"
	"github.com/leapstack-labs/ballotbox/internal/session"
	"github.com/leapstack-labs/ballotbox/internal/ui/features/poll/pages"
)

// Handlers provides HTTP handlers for the voting page.
type Handlers struct {
	sessions *session.Manager
	logger   *slog.Logger
	isDev    bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *session.Manager, logger *slog.Logger, isDev bool) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		sessions: sessions,
		logger:   logger,
		isDev:    isDev,
	}
}

// HomePage renders the document shell and opens the poll list for the
// session.
func (h *Handlers) HomePage(w http.ResponseWriter, r *http.Request) {
	p, err := h.sessions.Page(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := p.Open(r.Context(), voting.SectionPolls, voting.StateList); err != nil {
		h.logger.Error("failed to open poll list", slog.Any("error", err))
		p.Report(err)
	}

	if err := pages.HomePage("Polls", h.isDev).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Updates is the long-lived SSE endpoint of a session's page. It sends
// every region on connect and then whatever changed after each ping.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	p, err := h.sessions.Page(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	sse := datastar.NewSSE(w, r)

	updates, release := p.Regions().Subscribe()
	defer release()

	var last uint64
	send := func() {
		regions, version := p.Regions().Since(last)
		for _, rg := range regions {
			if err := sse.PatchElementTempl(rg); err != nil {
				_ = sse.ConsoleError(err)
				return
			}
		}
		last = version
	}
	send()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			send()
		}
	}
}

// Activate switches the session's page to the page state named in the
// path. Seeds come from the query string.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	section, name := chi.URLParam(r, "section"), chi.URLParam(r, "name")
	seeds, err := voting.Seeds(section, name, r.URL.Query())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, pagestate.ErrUnknownState) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	p, err := h.sessions.Page(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := p.Open(r.Context(), section, name, seeds...); err != nil {
		h.logger.Error("activation failed", slog.String("section", section), slog.String("name", name), slog.Any("error", err))
		p.Report(err)
		_ = sse.ConsoleError(err)
	}
}

// Vote submits the selection carried by the request's signals.
func (h *Handlers) Vote(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals VoteSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "failed to read signals: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.sessions.Page(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := p.Submit(r.Context(), page.Selection(signals.Selection)); err != nil {
		if errors.Is(err, page.ErrNotReady) || errors.Is(err, voting.ErrAlreadyVoted) {
			h.logger.Debug("vote rejected", slog.String("session", p.SessionID()), slog.Any("error", err))
		} else {
			h.logger.Error("vote failed", slog.String("session", p.SessionID()), slog.Any("error", err))
		}
		p.Report(err)
		_ = sse.ConsoleError(err)
	}
}
