// Package session maps browser sessions to running pages.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/ballotbox/internal/page"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "ballotbox"
	idKey      = "sid"

	// DefaultIdleTimeout is how long a page lives without requests.
	DefaultIdleTimeout = 30 * time.Minute
)

// ErrClosed reports a request after the manager stopped.
var ErrClosed = errors.New("session: manager closed")

// Factory builds the page of a new session.
type Factory func(sessionID string) (*page.Page, error)

// Config configures a Manager.
type Config struct {
	Store       sessions.Store
	Factory     Factory
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

type entry struct {
	page     *page.Page
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Manager starts one page per browser session and stops pages that have
// been idle for too long.
type Manager struct {
	store   sessions.Store
	factory Factory
	idle    time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	pages  map[string]*entry
	wg     sync.WaitGroup
	closed bool
}

// NewManager creates a Manager. Page loops run under ctx.
func NewManager(ctx context.Context, cfg Config) *Manager {
	m := &Manager{
		store:   cfg.Store,
		factory: cfg.Factory,
		idle:    cfg.IdleTimeout,
		logger:  cfg.Logger,
		now:     time.Now,
		ctx:     ctx,
		pages:   make(map[string]*entry),
	}
	if m.idle <= 0 {
		m.idle = DefaultIdleTimeout
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Page returns the page of the request's session, starting a session and
// its page when needed. The session cookie is written to w.
func (m *Manager) Page(w http.ResponseWriter, r *http.Request) (*page.Page, error) {
	sess, err := m.store.Get(r, CookieName)
	if err != nil {
		// Undecodable cookie; sess is a fresh session.
		m.logger.Debug("discarding session cookie", slog.Any("error", err))
	}

	id, _ := sess.Values[idKey].(string)
	if id == "" {
		id = uuid.New().String()
		sess.Values[idKey] = id
		if err := sess.Save(r, w); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}
	return m.get(id)
}

// Lookup returns the page of a running session.
func (m *Manager) Lookup(id string) (*page.Page, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pages[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.page, true
}

func (m *Manager) get(id string) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if e, ok := m.pages[id]; ok {
		select {
		case <-e.page.Done():
			delete(m.pages, id)
		default:
			e.lastSeen = m.now()
			return e.page, nil
		}
	}

	p, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to start page: %w", err)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.pages[id] = &entry{page: p, cancel: cancel, lastSeen: m.now()}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := p.Run(ctx); err != nil {
			m.logger.Error("page loop failed", slog.String("session", id), slog.Any("error", err))
		}
	}()
	m.logger.Debug("session started", slog.String("session", id))
	return p, nil
}

// Sweep stops pages idle since before now minus the idle timeout and
// returns how many were stopped.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.pages {
		if now.Sub(e.lastSeen) < m.idle {
			continue
		}
		// Pages with an open stream stay alive.
		if e.page.Regions().Subscribers() > 0 {
			continue
		}
		e.cancel()
		delete(m.pages, id)
		n++
		m.logger.Debug("session expired", slog.String("session", id))
	}
	return n
}

// Len returns the number of running pages.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Run sweeps idle pages every interval until ctx is done, then stops every
// page.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Info("expired idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Close stops every page and waits for their loops to return.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id, e := range m.pages {
		e.cancel()
		delete(m.pages, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
