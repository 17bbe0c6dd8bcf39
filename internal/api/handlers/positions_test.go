package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/marketdata"
	"github.com/wonny/vantage/backend/internal/position"
	"github.com/wonny/vantage/backend/internal/strategyconfig"
	"github.com/wonny/vantage/backend/pkg/logger"
)

type stubSeriesProvider struct {
	series map[string]*contracts.EnrichedSeries
}

func (s *stubSeriesProvider) FetchEnriched(ctx context.Context, ticker string, lookbackDays int) (*contracts.EnrichedSeries, error) {
	es, ok := s.series[ticker]
	if !ok {
		return nil, fmt.Errorf("no data for %s", ticker)
	}
	return es, nil
}

func flatSeries(ticker string, close float64) *contracts.EnrichedSeries {
	bars := make([]contracts.Bar, 60)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = contracts.Bar{
			Date:   base.AddDate(0, 0, i),
			Open:   close,
			High:   close * 1.01,
			Low:    close * 0.99,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	return marketdata.Enrich(ticker, bars)
}

func newPositionRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNop()

	provider := &stubSeriesProvider{series: map[string]*contracts.EnrichedSeries{
		"AAPL": flatSeries("AAPL", 105),
	}}
	machine := position.NewMachine(strategyconfig.DefaultSEPA().Risk, log)
	mon := position.NewMonitor(machine, provider, nil, time.Minute, 60, log)

	h := NewPositionHandler(mon, log)
	r := mux.NewRouter()
	r.HandleFunc("/api/positions", h.List).Methods("GET")
	r.HandleFunc("/api/positions", h.Add).Methods("POST")
	r.HandleFunc("/api/positions/signals", h.RecentAssessments).Methods("GET")
	r.HandleFunc("/api/positions/check", h.CheckNow).Methods("POST")
	r.HandleFunc("/api/positions/{ticker}", h.Remove).Methods("DELETE")
	return r
}

func addPosition(t *testing.T, router http.Handler, body string) contracts.Position {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/positions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pos contracts.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	return pos
}

func TestPositionHandler_AddAndList(t *testing.T) {
	router := newPositionRouter(t)

	pos := addPosition(t, router, `{
		"ticker": "AAPL",
		"strategy": "SEPA",
		"entry_price": 100,
		"entry_date": "2025-07-01T00:00:00Z",
		"entry_day_low": 96,
		"shares": 100,
		"rating": 4.5,
		"initial_stop": 94
	}`)
	assert.Equal(t, 100, pos.RemainingShares)
	assert.Equal(t, 94.0, pos.CurrentStop)

	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []contracts.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "AAPL", listed[0].Ticker)
}

func TestPositionHandler_AddValidation(t *testing.T) {
	router := newPositionRouter(t)

	cases := map[string]string{
		"missing ticker":   `{"entry_price": 100, "shares": 10, "initial_stop": 94}`,
		"zero shares":      `{"ticker": "AAPL", "entry_price": 100, "shares": 0, "initial_stop": 94}`,
		"stop above entry": `{"ticker": "AAPL", "entry_price": 100, "shares": 10, "initial_stop": 101}`,
		"bad json":         `{nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/positions", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPositionHandler_Remove(t *testing.T) {
	router := newPositionRouter(t)

	addPosition(t, router, `{
		"ticker": "AAPL",
		"entry_price": 100,
		"entry_date": "2025-07-01T00:00:00Z",
		"entry_day_low": 96,
		"shares": 100,
		"initial_stop": 94
	}`)

	req := httptest.NewRequest(http.MethodDelete, "/api/positions/AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var listed []contracts.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestPositionHandler_CheckNow(t *testing.T) {
	router := newPositionRouter(t)

	addPosition(t, router, `{
		"ticker": "AAPL",
		"entry_price": 100,
		"entry_date": "2025-07-01T00:00:00Z",
		"entry_day_low": 96,
		"shares": 100,
		"initial_stop": 94
	}`)

	req := httptest.NewRequest(http.MethodPost, "/api/positions/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Checked     int                     `json:"checked"`
		Assessments []*contracts.Assessment `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Checked)
	require.Len(t, resp.Assessments, 1)
	assert.Equal(t, "AAPL", resp.Assessments[0].Ticker)
}

func TestPositionHandler_RecentAssessments(t *testing.T) {
	router := newPositionRouter(t)

	addPosition(t, router, `{
		"ticker": "AAPL",
		"entry_price": 100,
		"entry_date": "2025-07-01T00:00:00Z",
		"entry_day_low": 96,
		"shares": 100,
		"initial_stop": 94
	}`)

	req := httptest.NewRequest(http.MethodPost, "/api/positions/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/positions/signals?limit=5", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var assessments []*contracts.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessments))
	require.Len(t, assessments, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/positions/signals?limit=bogus", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
