package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/internal/page"
	voting "github.com/leapstack-labs/ballotbox/internal/poll"
	"github.com/leapstack-labs/ballotbox/internal/session"
	"github.com/leapstack-labs/ballotbox/internal/ui/features"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	return NewHandlers(fixture.Sessions, nil, true), fixture
}

// openHome loads the home page and returns the recorder carrying the
// session cookie.
func openHome(t *testing.T, h *Handlers) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.HomePage(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec
}

func sessionPage(t *testing.T, fixture *features.TestFixture, home *httptest.ResponseRecorder) *page.Page {
	t.Helper()
	req := features.WithCookies(httptest.NewRequest(http.MethodGet, "/", nil), home)
	p, err := fixture.Sessions.Page(httptest.NewRecorder(), req)
	require.NoError(t, err)
	return p
}

func activate(h *Handlers, home *httptest.ResponseRecorder, section, name, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/state/"+section+"/"+name+query, nil)
	req = features.RequestWithPathParams(features.WithCookies(req, home), map[string]string{
		"section": section,
		"name":    name,
	})
	rec := httptest.NewRecorder()
	h.Activate(rec, req)
	return rec
}

func vote(h *Handlers, home *httptest.ResponseRecorder, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/vote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Vote(rec, features.WithCookies(req, home))
	return rec
}

func waitForQuery(t *testing.T, fixture *features.TestFixture, query string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Contains(fixture.Backend.Queries(), query)
	}, 2*time.Second, 5*time.Millisecond, "query %s never sent", query)
}

func regionHTML(t *testing.T, p *page.Page, id string) string {
	t.Helper()
	rg, ok := p.Regions().Get(id)
	if !ok {
		return ""
	}
	var sb strings.Builder
	require.NoError(t, rg.Render(context.Background(), &sb))
	return sb.String()
}

// =============================================================================
// HomePage Tests
// =============================================================================

func TestHomePage(t *testing.T) {
	h, fixture := setupTestHandlers(t)

	rec := openHome(t, h)

	body := rec.Body.String()
	for _, want := range []string{
		"<!doctype html>",
		"<title>Polls - Ballotbox</title>",
		"data-init",
		"/updates",
		"/reload",
		`id="polls"`,
		`id="poll-detail"`,
		`id="page-error"`,
	} {
		assert.Contains(t, body, want, "response should contain %q", want)
	}

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)

	waitForQuery(t, fixture, voting.QueryPolls)
}

func TestHomePage_ReusesSession(t *testing.T) {
	h, fixture := setupTestHandlers(t)

	home := openHome(t, h)
	req := features.WithCookies(httptest.NewRequest(http.MethodGet, "/", nil), home)
	rec := httptest.NewRecorder()
	h.HomePage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "known sessions keep their cookie")
	assert.Equal(t, 1, fixture.Sessions.Len())
}

// =============================================================================
// Updates Tests
// =============================================================================

func TestUpdates_StreamsRegions(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	home := openHome(t, h)
	waitForQuery(t, fixture, voting.QueryPolls)

	req := features.WithCookies(httptest.NewRequest(http.MethodGet, "/updates", nil), home)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Updates(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, http.StatusOK, activate(h, home, voting.SectionPoll, voting.StateDetail, "?poll=p1").Code)

	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 2)
	assert.Contains(t, body, "Team lunch", "poll list is sent")
	assert.Contains(t, body, "Pizza", "detail patches follow")
}

func TestUpdates_NoPatchesWithoutChanges(t *testing.T) {
	h, _ := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()

	h.Updates(rec, req.WithContext(ctx))

	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"), "a new session has no regions")
}

// =============================================================================
// Activate Tests
// =============================================================================

func TestActivate(t *testing.T) {
	tests := []struct {
		name       string
		section    string
		state      string
		query      string
		wantStatus int
	}{
		{name: "detail", section: voting.SectionPoll, state: voting.StateDetail, query: "?poll=p1", wantStatus: http.StatusOK},
		{name: "list", section: voting.SectionPolls, state: voting.StateList, wantStatus: http.StatusOK},
		{name: "missing poll", section: voting.SectionPoll, state: voting.StateDetail, wantStatus: http.StatusBadRequest},
		{name: "unknown state", section: voting.SectionPoll, state: "archive", query: "?poll=p1", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t)
			home := openHome(t, h)

			rec := activate(h, home, tt.section, tt.state, tt.query)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestActivate_LoadsDetail(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	home := openHome(t, h)

	rec := activate(h, home, voting.SectionPoll, voting.StateDetail, "?poll=p1")
	require.Equal(t, http.StatusOK, rec.Code)

	waitForQuery(t, fixture, voting.QueryCount)
	p := sessionPage(t, fixture, home)
	assert.Contains(t, regionHTML(t, p, voting.HeaderTarget), "Team lunch")
	assert.Contains(t, regionHTML(t, p, voting.AnswersTarget("q1")), "Sushi")
}

// =============================================================================
// Vote Tests
// =============================================================================

func TestVote_RecordsBallot(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	home := openHome(t, h)
	activate(h, home, voting.SectionPoll, voting.StateDetail, "?poll=p1")
	waitForQuery(t, fixture, voting.QueryCount)

	rec := vote(h, home, `{"selection":{"q1":["a2"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"), "accepted votes report through /updates")

	waitForQuery(t, fixture, voting.QueryVote)
	p := sessionPage(t, fixture, home)
	require.Eventually(t, func() bool {
		votes, err := fixture.History.ListVotes(context.Background(), p.SessionID(), 10)
		return err == nil && len(votes) == 1
	}, 2*time.Second, 5*time.Millisecond)

	votes, err := fixture.History.ListVotes(context.Background(), p.SessionID(), 10)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"q1": {"a2"}}, votes[0].Answers)
}

func TestVote_NotReady(t *testing.T) {
	h, fixture := setupTestHandlers(t)
	home := openHome(t, h)
	activate(h, home, voting.SectionPoll, voting.StateDetail, "?poll=p1")
	waitForQuery(t, fixture, voting.QueryCount)

	rec := vote(h, home, `{"selection":{}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, strings.Count(rec.Body.String(), "event:"), 1, "rejection is logged to the console")
	assert.NotContains(t, fixture.Backend.Queries(), voting.QueryVote)

	p := sessionPage(t, fixture, home)
	assert.Contains(t, regionHTML(t, p, voting.ErrorTarget), "needs")
}

func TestVote_BadSignals(t *testing.T) {
	h, _ := setupTestHandlers(t)

	rec := vote(h, httptest.NewRecorder(), `{"selection":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
