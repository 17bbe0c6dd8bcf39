package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/marketdata"
	"github.com/wonny/vantage/backend/internal/scan"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

type stubRegime struct {
	state contracts.Regime
}

func (s *stubRegime) Assess(ctx context.Context) contracts.RegimeSnapshot {
	return contracts.RegimeSnapshot{
		State:      s.state,
		Benchmark:  "SPY",
		AssessedAt: time.Now(),
	}
}

type stubUniverse struct {
	tickers []string
}

func (s *stubUniverse) Name() string { return "stub" }

func (s *stubUniverse) Query(ctx context.Context, criteria contracts.UniverseCriteria) ([]string, error) {
	return s.tickers, nil
}

type stubEnricher struct{}

func (s *stubEnricher) FetchAll(ctx context.Context, tickers []string, lookbackDays int, report func(done, total int, ticker string)) (map[string]*contracts.EnrichedSeries, map[string]contracts.SkipReason) {
	out := make(map[string]*contracts.EnrichedSeries, len(tickers))
	for i, t := range tickers {
		bars := make([]contracts.Bar, 260)
		base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		for d := range bars {
			close := 50 + 50*float64(d)/259
			bars[d] = contracts.Bar{
				Date:   base.AddDate(0, 0, d),
				Open:   close,
				High:   close * 1.05,
				Low:    close,
				Close:  close,
				Volume: 3_000_000,
			}
		}
		out[t] = marketdata.Enrich(t, bars)
		if report != nil {
			report(i+1, len(tickers), t)
		}
	}
	return out, nil
}

func newScanRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNop()

	orch := scan.NewOrchestrator(
		&stubRegime{state: contracts.RegimeBull},
		scan.NewStage1(&stubUniverse{tickers: []string{"AAA", "BBB"}}, log),
		&stubEnricher{},
		scan.NewGateRunner(2, log),
		strategyconfig.DefaultSEPA(),
		strategyconfig.DefaultQM(),
		nil,
		scan.Options{},
		log,
	)
	jobs := scan.NewJobManager(orch, 2, log)

	h := NewScanHandler(jobs, nil, log)
	r := mux.NewRouter()
	r.HandleFunc("/api/scan", h.Submit).Methods("POST")
	r.HandleFunc("/api/scans", h.List).Methods("GET")
	r.HandleFunc("/api/scan/history/{ticker}", h.History).Methods("GET")
	r.HandleFunc("/api/scan/{id}", h.Poll).Methods("GET")
	r.HandleFunc("/api/scan/{id}", h.Cancel).Methods("DELETE")
	return r
}

func submitScan(t *testing.T, router http.Handler, body string) SubmitResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	return resp
}

func pollUntilDone(t *testing.T, router http.Handler, id string) contracts.JobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/scan/"+id, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var view contracts.JobView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		if view.Status == contracts.JobDone || view.Status == contracts.JobError {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan did not finish in time")
	return contracts.JobView{}
}

func TestScanHandler_SubmitAndPoll(t *testing.T) {
	router := newScanRouter(t)

	resp := submitScan(t, router, `{"top_n": 5}`)
	view := pollUntilDone(t, router, resp.JobID)

	assert.Equal(t, contracts.JobDone, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, 2, view.Result.UnionSize)
	assert.NotNil(t, view.FinishedAt)
	assert.Equal(t, float64(100), view.Progress.Percent)
}

func TestScanHandler_SubmitEmptyBody(t *testing.T) {
	router := newScanRouter(t)

	resp := submitScan(t, router, "")
	view := pollUntilDone(t, router, resp.JobID)
	assert.Equal(t, contracts.JobDone, view.Status)
}

func TestScanHandler_SubmitRejectsBadBody(t *testing.T) {
	router := newScanRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandler_SubmitRejectsNegativeParams(t *testing.T) {
	router := newScanRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString(`{"top_n": -1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandler_PollUnknownJob(t *testing.T) {
	router := newScanRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/no-such-job", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanHandler_CancelUnknownJob(t *testing.T) {
	router := newScanRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/scan/no-such-job", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanHandler_CancelKnownJob(t *testing.T) {
	router := newScanRouter(t)

	resp := submitScan(t, router, `{}`)

	req := httptest.NewRequest(http.MethodDelete, "/api/scan/"+resp.JobID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A cancelled run still lands in a terminal state with its
	// partial result attached.
	view := pollUntilDone(t, router, resp.JobID)
	assert.Equal(t, contracts.JobDone, view.Status)
	assert.NotNil(t, view.Result)
}

func TestScanHandler_HistoryWithoutPersistence(t *testing.T) {
	router := newScanRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/scan/history/AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanHandler_ListReturnsSubmitted(t *testing.T) {
	router := newScanRouter(t)

	first := submitScan(t, router, `{}`)
	pollUntilDone(t, router, first.JobID)

	req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []contracts.JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, first.JobID, views[0].ID)
}
