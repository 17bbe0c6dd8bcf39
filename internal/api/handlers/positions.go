package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/internal/position"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// PositionHandler handles open-position monitoring endpoints.
type PositionHandler struct {
	monitor *position.Monitor
	logger  *logger.Logger
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(mon *position.Monitor, log *logger.Logger) *PositionHandler {
	return &PositionHandler{
		monitor: mon,
		logger:  log,
	}
}

// List returns all currently tracked open positions.
// GET /api/positions
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Positions())
}

// Add registers a new open position for monitoring.
// POST /api/positions
func (h *PositionHandler) Add(w http.ResponseWriter, r *http.Request) {
	var pos contracts.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if pos.Ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	if pos.EntryPrice <= 0 || pos.Shares <= 0 {
		respondError(w, http.StatusBadRequest, "entry_price and shares must be positive")
		return
	}
	if pos.InitialStop <= 0 || pos.InitialStop >= pos.EntryPrice {
		respondError(w, http.StatusBadRequest, "initial_stop must be positive and below entry_price")
		return
	}

	if err := h.monitor.AddPosition(r.Context(), &pos); err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": pos.Ticker,
		}).Error("Failed to add position")
		respondError(w, http.StatusInternalServerError, "Failed to add position")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"ticker": pos.Ticker,
		"shares": pos.Shares,
	}).Info("Position added")

	respondJSON(w, http.StatusCreated, pos)
}

// Remove stops monitoring a position.
// DELETE /api/positions/{ticker}
func (h *PositionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	h.monitor.RemovePosition(ticker)

	respondJSON(w, http.StatusOK, map[string]string{
		"ticker": ticker,
		"status": "removed",
	})
}

// RecentAssessments returns the latest exit assessments, newest first.
// GET /api/positions/signals?limit=20
func (h *PositionHandler) RecentAssessments(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	respondJSON(w, http.StatusOK, h.monitor.RecentAssessments(limit))
}

// CheckNow runs one assessment pass over all open positions immediately.
// POST /api/positions/check
func (h *PositionHandler) CheckNow(w http.ResponseWriter, r *http.Request) {
	assessments := h.monitor.CheckAll(r.Context())

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"checked":     len(assessments),
		"assessments": assessments,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
