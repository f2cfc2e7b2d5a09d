// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/internal/history"
	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/poll"
	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/internal/session"
	"github.com/leapstack-labs/ballotbox/internal/testutil"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Backend      *testutil.Backend
	History      *history.Store
	Sessions     *session.Manager
	SessionStore *sessions.CookieStore
}

// SetupTestFixture creates a fake backend serving one open poll, an
// in-memory history store and a session manager building voting pages.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	backend := NewPollBackend(t)

	store, err := history.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)

	client, err := rpc.NewClient(rpc.Config{URL: backend.URL(), Timeout: 2 * time.Second, Logger: logger})
	require.NoError(t, err)

	sessionStore := NewTestSessionStore()
	manager := session.NewManager(ctx, session.Config{
		Store: sessionStore,
		Factory: func(id string) (*page.Page, error) {
			return poll.NewPage(poll.Config{History: store, PageSize: 20, Logger: logger}, client, id)
		},
		Logger: logger,
	})

	t.Cleanup(func() {
		cancel()
		manager.Close()
		_ = store.Close()
	})

	return &TestFixture{
		Backend:      backend,
		History:      store,
		Sessions:     manager,
		SessionStore: sessionStore,
	}
}

// NewPollBackend starts a fake backend with one poll of one question.
func NewPollBackend(t *testing.T) *testutil.Backend {
	t.Helper()
	b := testutil.NewBackend(t)
	b.Table(poll.QueryPolls, []string{"id", "title"}, []any{"p1", "Team lunch"})
	b.Table(poll.QueryPoll, []string{"id", "title", "description"}, []any{"p1", "Team lunch", "Pick a place"})
	b.Table(poll.QueryQuestions, []string{"id", "text", "min", "max"}, []any{"q1", "Where?", 1, 1})
	b.Table(poll.QueryAnswers, []string{"id", "question", "text"},
		[]any{"a1", "q1", "Pizza"},
		[]any{"a2", "q1", "Sushi"})
	b.Table(poll.QueryCount, []string{"question", "answer", "text", "votes"},
		[]any{"q1", "a1", "Pizza", 2},
		[]any{"q1", "a2", "Sushi", 2})
	b.Handle(poll.QueryVote, func(url.Values) map[string]any {
		return map[string]any{"name": poll.QueryVote, "type": "add_rows"}
	})
	return b
}

// WithCookies copies the cookies set on rec into r.
func WithCookies(r *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

// RequestWithPathParams wraps a request with chi URL params.
func RequestWithPathParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
