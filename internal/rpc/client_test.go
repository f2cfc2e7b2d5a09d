package rpc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/internal/rpc"
	"github.com/leapstack-labs/ballotbox/internal/testutil"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

func newClient(t *testing.T, backendURL string) *rpc.Client {
	t.Helper()
	c, err := rpc.NewClient(rpc.Config{
		URL:      backendURL,
		Format:   "json",
		PageSize: 50,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "::"} {
		_, err := rpc.NewClient(rpc.Config{URL: u})
		assert.Error(t, err, "url %q", u)
	}
}

func TestClient_DoEncodesForm(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Table("questions", []string{"id", "text"}, []any{"q1", "Where?"})
	c := newClient(t, backend.URL())

	res, err := c.Do(context.Background(), core.Request{
		Query:     "questions",
		Condition: &core.Condition{Table: "questions", ID: "poll", Value: "p1"},
		Start:     10,
		Replace:   true,
		Ticket:    "t-9",
	})
	require.NoError(t, err)

	assert.Equal(t, "questions", res.Query)
	assert.Equal(t, "t-9", res.Ticket)
	require.NotNil(t, res.Payload.Table)
	assert.Equal(t, 0, res.Payload.Table.Index("id"))

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	form := reqs[0]
	assert.Equal(t, "questions", form.Get(rpc.FieldQuery))
	assert.Equal(t, `<conditions><condition table="questions" id="poll" value="p1"></condition></conditions>`, form.Get(rpc.FieldCondition))
	assert.Equal(t, "50", form.Get(rpc.FieldCount))
	assert.Equal(t, "10", form.Get(rpc.FieldStart))
	assert.Equal(t, "json", form.Get(rpc.FieldFormat))
	assert.Equal(t, "1", form.Get(rpc.FieldDelete))
	assert.Equal(t, "t-9", form.Get(rpc.FieldUUID))
}

func TestClient_DoOmitsUnsetFields(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Table("polls", []string{"id"})
	c, err := rpc.NewClient(rpc.Config{URL: backend.URL()})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), core.Request{Query: "polls"})
	require.NoError(t, err)

	form := backend.Requests()[0]
	for _, field := range []string{rpc.FieldCondition, rpc.FieldRows, rpc.FieldCount, rpc.FieldStart, rpc.FieldFormat, rpc.FieldDelete, rpc.FieldUUID} {
		_, present := form[field]
		assert.False(t, present, "field %s", field)
	}
}

func TestClient_DoServerError(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle("vote", func(url.Values) map[string]any {
		return map[string]any{"error": "poll closed", "query": ""}
	})
	c := newClient(t, backend.URL())

	_, err := c.Do(context.Background(), core.Request{Query: "vote", Ticket: "t-1"})

	var serverErr *rpc.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, "vote", serverErr.Query)
	assert.Equal(t, "t-1", serverErr.Ticket)
	assert.Equal(t, "poll closed", serverErr.Message)
}

func TestClient_DoHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.Do(context.Background(), core.Request{Query: "polls"})
	assert.ErrorIs(t, err, rpc.ErrHTTPStatus)
}

func TestClient_DoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := rpc.NewClient(rpc.Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Do(context.Background(), core.Request{Query: "polls"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query polls")
}

func TestDispatcher_DeliversAsynchronously(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Table("polls", []string{"id"}, []any{"p1"})
	backend.Table("count", []string{"answer", "votes"})
	c := newClient(t, backend.URL())

	var (
		mu       sync.Mutex
		received []core.Result
	)
	d := rpc.NewDispatcher(c, func(req core.Request, res core.Result, err error) {
		assert.NoError(t, err)
		assert.Equal(t, req.Ticket, res.Ticket)
		mu.Lock()
		received = append(received, res)
		mu.Unlock()
	})

	require.NoError(t, d.Send(context.Background(), core.Request{Query: "polls", Ticket: "a"}))
	require.NoError(t, d.Send(context.Background(), core.Request{Query: "count", Ticket: "b"}))
	d.Wait()

	assert.Len(t, received, 2)
	assert.ElementsMatch(t, []string{"polls", "count"}, backend.Queries())
}
