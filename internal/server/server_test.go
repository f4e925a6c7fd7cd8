package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

type fakeBackend struct {
	accounts     []models.Account
	lastHours    int
	lastSelector models.EntitySelector
	lastAccount  string
	lastWindow   models.TimeWindow
	summaryErr   error
	count        models.CountResult
}

func (f *fakeBackend) Accounts() []models.Account { return f.accounts }

func (f *fakeBackend) Summary(_ context.Context, accountID string, selector models.EntitySelector, hours int) (*models.Summary, error) {
	f.lastAccount, f.lastSelector, f.lastHours = accountID, selector, hours
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return &models.Summary{AccountID: accountID, Selector: selector, Hours: hours, Total: 42, ChartData: []models.BucketResult{}}, nil
}

func (f *fakeBackend) Count(_ context.Context, accountID string, window models.TimeWindow, selector models.EntitySelector) (models.CountResult, error) {
	f.lastAccount, f.lastWindow, f.lastSelector = accountID, window, selector
	return f.count, nil
}

func (f *fakeBackend) CacheStats(context.Context) (*models.CacheStats, error) {
	return &models.CacheStats{Path: "/tmp/cache.db", Entries: 7, Hits: 3, Misses: 4}, nil
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	rec := do(t, New(&fakeBackend{}, "", 24), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAccounts(t *testing.T) {
	backend := &fakeBackend{accounts: []models.Account{{ID: "a", Name: "Alpha"}}}
	rec := do(t, New(backend, "", 24), "/v1/accounts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	accounts, _ := decode(t, rec)["accounts"].([]any)
	if len(accounts) != 1 {
		t.Errorf("accounts = %v", accounts)
	}
}

func TestSummary(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, "", 24)

	rec := do(t, s, "/v1/accounts/acct-1/summary?entity=score_results_updated&hours=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["entity"] != "score_results_updated" || body["total"] != float64(42) {
		t.Errorf("unexpected body: %v", body)
	}
	if backend.lastAccount != "acct-1" || backend.lastHours != 6 || backend.lastSelector != models.ScoreResultsUpdated {
		t.Errorf("backend got %s %d %v", backend.lastAccount, backend.lastHours, backend.lastSelector)
	}

	do(t, s, "/v1/accounts/acct-1/summary")
	if backend.lastHours != 24 || backend.lastSelector != models.ItemsCreated {
		t.Errorf("defaults not applied: %d %v", backend.lastHours, backend.lastSelector)
	}
}

func TestSummary_BadParams(t *testing.T) {
	s := New(&fakeBackend{}, "", 24)
	for _, target := range []string{
		"/v1/accounts/a/summary?entity=bogus",
		"/v1/accounts/a/summary?hours=abc",
		"/v1/accounts/a/summary?hours=-1",
		"/v1/accounts/a/summary?hours=100000",
	} {
		rec := do(t, s, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
			continue
		}
		if _, ok := decode(t, rec)["error"]; !ok {
			t.Errorf("%s: missing error field", target)
		}
	}
}

func TestSummary_BackendError(t *testing.T) {
	s := New(&fakeBackend{summaryErr: errors.New("cancelled")}, "", 24)
	rec := do(t, s, "/v1/accounts/a/summary")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCount(t *testing.T) {
	backend := &fakeBackend{count: models.CountResult{Count: 9, Pages: 2, PagesFailed: 1}}
	s := New(backend, "", 24)

	rec := do(t, s, "/v1/accounts/acct-1/count?entity=items&start=2023-01-01T12:07:00Z&end=2023-01-01T12:52:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["count"] != float64(9) || body["partial"] != true || body["pagesFailed"] != float64(1) {
		t.Errorf("unexpected body: %v", body)
	}
	want := models.TimeWindow{
		Start: time.Date(2023, 1, 1, 12, 7, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 1, 12, 52, 0, 0, time.UTC),
	}
	if !backend.lastWindow.Equal(want) {
		t.Errorf("window = %s, want %s", backend.lastWindow, want)
	}
}

func TestCount_BadParams(t *testing.T) {
	s := New(&fakeBackend{}, "", 24)
	for _, target := range []string{
		"/v1/accounts/a/count?end=2023-01-01T12:00:00Z",
		"/v1/accounts/a/count?start=2023-01-01T12:00:00Z",
		"/v1/accounts/a/count?start=yesterday&end=2023-01-01T12:00:00Z",
		"/v1/accounts/a/count?start=2023-01-01T13:00:00Z&end=2023-01-01T12:00:00Z",
		"/v1/accounts/a/count?entity=nope&start=2023-01-01T11:00:00Z&end=2023-01-01T12:00:00Z",
	} {
		rec := do(t, s, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestCacheStats(t *testing.T) {
	rec := do(t, New(&fakeBackend{}, "", 24), "/v1/cache/stats")
	body := decode(t, rec)
	if body["entries"] != float64(7) || body["hits"] != float64(3) {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["oldest"]; ok {
		t.Error("zero oldest should be omitted")
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := New(&fakeBackend{}, "127.0.0.1:0", 24)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil && !strings.Contains(err.Error(), "closed") {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
