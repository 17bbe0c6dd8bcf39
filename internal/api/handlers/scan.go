package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/scan"
	"github.com/wonny/vantage/backend/pkg/logger"
)

const (
	streamInterval  = 500 * time.Millisecond
	streamWriteWait = 10 * time.Second
)

// ScanHandler handles combined-scan API endpoints.
type ScanHandler struct {
	jobs     *scan.JobManager
	history  contracts.ScanResultRepository // nil when persistence is off
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewScanHandler creates a new scan handler
func NewScanHandler(jobs *scan.JobManager, history contracts.ScanResultRepository, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		jobs:    jobs,
		history: history,
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SubmitResponse is the payload returned when a scan is accepted.
type SubmitResponse struct {
	JobID  string              `json:"job_id"`
	Status contracts.JobStatus `json:"status"`
}

// Submit starts a new combined scan.
// POST /api/scan
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var params contracts.ScanParams
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if params.LookbackDays < 0 || params.TopN < 0 {
		respondError(w, http.StatusBadRequest, "lookback_days and top_n must be non-negative")
		return
	}

	id, err := h.jobs.Submit(params)
	if err != nil {
		if err == scan.ErrTooManyScans {
			respondError(w, http.StatusConflict, "Too many scans running")
			return
		}
		h.logger.WithError(err).Error("Failed to submit scan")
		respondError(w, http.StatusInternalServerError, "Failed to submit scan")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"job_id": id,
	}).Info("Scan submitted")

	respondJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:  id,
		Status: contracts.JobPending,
	})
}

// Poll returns the current state of a scan job.
// GET /api/scan/{id}
func (h *ScanHandler) Poll(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, ok := h.jobs.Poll(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Scan not found")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Cancel requests cooperative cancellation of a running scan.
// DELETE /api/scan/{id}
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.jobs.Cancel(id) {
		respondError(w, http.StatusNotFound, "Scan not found")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"job_id": id,
	}).Info("Scan cancellation requested")

	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": id,
		"status": "cancelling",
	})
}

// List returns all known scan jobs, newest first.
// GET /api/scans
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobs.List())
}

// History returns a ticker's scored rows across persisted runs.
// GET /api/scan/history/{ticker}?from=2026-01-01&to=2026-02-01
func (h *ScanHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	ticker := mux.Vars(r)["ticker"]

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return
		}
	}

	rows, err := h.history.GetByTicker(r.Context(), ticker, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
		}).Error("Failed to query scan history")
		respondError(w, http.StatusInternalServerError, "Failed to query scan history")
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// Stream upgrades to a WebSocket and pushes job state until the scan
// reaches a terminal status or the client disconnects.
// GET /api/scan/{id}/stream
func (h *ScanHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, ok := h.jobs.Poll(id); !ok {
		respondError(w, http.StatusNotFound, "Scan not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSent string
	for {
		view, ok := h.jobs.Poll(id)
		if !ok {
			return
		}

		payload, err := json.Marshal(view)
		if err != nil {
			h.logger.WithError(err).Error("Failed to marshal job view")
			return
		}

		// Only push when something changed; terminal states always push.
		terminal := view.Status == contracts.JobDone || view.Status == contracts.JobError
		if string(payload) != lastSent || terminal {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			lastSent = string(payload)
		}

		if terminal {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(view.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
