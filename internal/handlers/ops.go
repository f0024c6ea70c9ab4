package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// HandleHealth reports liveness
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleDLQList returns dead-lettered deliveries, newest first.
// Supports ?limit= and ?offset= for paging.
func (h *Handlers) HandleDLQList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.recorder.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list dead-letter entries", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list dead-letter entries")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleDLQStats returns dead-letter queue statistics
func (h *Handlers) HandleDLQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.recorder.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to read dead-letter stats", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read dead-letter stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleBudgetStatus returns the retry-budget window for one service
func (h *Handlers) HandleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	h.writeJSON(w, http.StatusOK, h.budget.Status(service))
}

// HandleSLACheck runs a compliance check for one service
func (h *Handlers) HandleSLACheck(w http.ResponseWriter, r *http.Request) {
	service := mux.Vars(r)["service"]
	h.writeJSON(w, http.StatusOK, h.monitor.Check(service))
}

// HandleQueueDepth accepts a depth reading pushed by the queue owner
// and returns its classification.
func (h *Handlers) HandleQueueDepth(w http.ResponseWriter, r *http.Request) {
	var reading struct {
		Depth *int `json:"depth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil || reading.Depth == nil {
		h.writeError(w, http.StatusBadRequest, "body must be {\"depth\": <non-negative integer>}")
		return
	}
	if *reading.Depth < 0 {
		h.writeError(w, http.StatusBadRequest, "depth must be non-negative")
		return
	}

	h.writeJSON(w, http.StatusOK, h.monitor.ObserveQueueDepth(r.Context(), *reading.Depth))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
