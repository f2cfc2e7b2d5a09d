package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// AnswerFunc builds the JSON envelope for one backend request. The query
// and uuid fields are filled in from the request when missing.
type AnswerFunc func(form url.Values) map[string]any

// Backend is a fake scripting backend serving form-encoded queries.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	answers  map[string]AnswerFunc
	requests []url.Values
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{answers: make(map[string]AnswerFunc)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend endpoint.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Handle registers the answer for a query name.
func (b *Backend) Handle(query string, fn AnswerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[query] = fn
}

// Table registers a tabular answer with the given column names.
func (b *Backend) Table(query string, columns []string, rows ...[]any) {
	header := make([]map[string]any, 0, len(columns))
	for _, c := range columns {
		header = append(header, map[string]any{"name": c})
	}
	body := make([]any, 0, len(rows))
	for _, r := range rows {
		body = append(body, r)
	}
	b.Handle(query, func(url.Values) map[string]any {
		return map[string]any{
			"name":  query,
			"table": map[string]any{"header": header, "body": body},
		}
	})
}

// Requests returns the forms received so far.
func (b *Backend) Requests() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.requests...)
}

// Queries returns the query names received so far.
func (b *Backend) Queries() []string {
	var out []string
	for _, form := range b.Requests() {
		out = append(out, form.Get("query"))
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.PostForm.Get("query")

	b.mu.Lock()
	b.requests = append(b.requests, r.PostForm)
	fn, ok := b.answers[query]
	b.mu.Unlock()

	env := map[string]any{"error": "unknown query " + query}
	if ok {
		env = fn(r.PostForm)
	}
	if _, set := env["query"]; !set {
		env["query"] = query
	}
	if _, set := env["uuid"]; !set {
		env["uuid"] = r.PostForm.Get("uuid")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}
