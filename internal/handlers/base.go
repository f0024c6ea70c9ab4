package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"webhook-relay/internal/budget"
	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/dlq"
	"webhook-relay/internal/idempotency"
	"webhook-relay/internal/monitor"
	"webhook-relay/internal/relay"
	"webhook-relay/internal/signature"
)

// Forwarder delivers one webhook payload downstream
type Forwarder interface {
	Forward(ctx context.Context, source string, payload []byte) (*relay.Result, error)
}

type Handlers struct {
	verifier        *signature.Verifier
	signatureHeader string
	store           *idempotency.Store
	forwarder       Forwarder
	budget          *budget.Tracker
	monitor         *monitor.Monitor
	recorder        *dlq.Recorder
	logger          logging.Logger
}

func New(
	verifier *signature.Verifier,
	signatureHeader string,
	store *idempotency.Store,
	forwarder Forwarder,
	tracker *budget.Tracker,
	mon *monitor.Monitor,
	recorder *dlq.Recorder,
	logger logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Handlers{
		verifier:        verifier,
		signatureHeader: signatureHeader,
		store:           store,
		forwarder:       forwarder,
		budget:          tracker,
		monitor:         mon,
		recorder:        recorder,
		logger:          logger,
	}
}

// Register wires every route onto the router
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/webhook/{source}", h.HandleWebhook).Methods("POST")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.HandleFunc("/api/dlq", h.HandleDLQList).Methods("GET")
	r.HandleFunc("/api/dlq/stats", h.HandleDLQStats).Methods("GET")
	r.HandleFunc("/api/budget/{service}", h.HandleBudgetStatus).Methods("GET")
	r.HandleFunc("/api/sla/{service}", h.HandleSLACheck).Methods("GET")
	r.HandleFunc("/api/queue-depth", h.HandleQueueDepth).Methods("POST")
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
