package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"webhook-relay/internal/common/logging"
	"webhook-relay/internal/idempotency"
)

// maxBodySize caps inbound webhook payloads at 1MB
const maxBodySize = 1 << 20

// webhookEnvelope pulls the identifying fields out of a payload for
// dedup-key construction. Everything else is forwarded opaquely.
type webhookEnvelope struct {
	ID        json.Number `json:"id"`
	Timestamp string      `json:"timestamp"`
	CreatedAt string      `json:"created_at"`
}

// forwardOutcome is the value cached in the idempotency store so a
// duplicate can replay the original response.
type forwardOutcome struct {
	Success     bool `json:"success"`
	Attempts    int  `json:"attempts"`
	AgentStatus int  `json:"agent_status"`
}

// HandleWebhook accepts one inbound webhook: verify the signature,
// short-circuit duplicates, forward with retries, and report the
// outcome. A duplicate of a successful delivery answers 200 without
// touching the downstream service.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		h.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(h.signatureHeader)); err != nil {
		h.logger.Warn("Webhook signature rejected",
			logging.Field{Key: "source", Value: source},
			logging.Field{Key: "error", Value: err.Error()},
		)
		h.writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	key := h.dedupKey(source, r, body)

	value, cached, err := h.store.Do(r.Context(), key, idempotency.DefaultTTL, func(ctx context.Context) ([]byte, error) {
		result, forwardErr := h.forwarder.Forward(ctx, source, body)
		if forwardErr != nil {
			return nil, forwardErr
		}
		return json.Marshal(forwardOutcome{
			Success:     result.Success,
			Attempts:    result.Attempts,
			AgentStatus: result.AgentStatus,
		})
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("delivery failed: %v", err))
		return
	}

	var outcome forwardOutcome
	if unmarshalErr := json.Unmarshal(value, &outcome); unmarshalErr != nil {
		h.logger.Error("Failed to decode cached delivery outcome", unmarshalErr,
			logging.Field{Key: "dedup_key", Value: key},
		)
	}

	if cached {
		h.logger.Info("Duplicate webhook short-circuited",
			logging.Field{Key: "source", Value: source},
			logging.Field{Key: "dedup_key", Value: key},
		)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"duplicate":    cached,
		"attempts":     outcome.Attempts,
		"agent_status": outcome.AgentStatus,
	})
}

// dedupKey prefers an explicit idempotency header, then the payload's
// entity identity, then a hash of the raw body.
func (h *Handlers) dedupKey(source string, r *http.Request, body []byte) string {
	requestID := r.Header.Get("X-Idempotency-Key")
	if requestID == "" {
		requestID = r.Header.Get("X-Request-ID")
	}

	var envelope webhookEnvelope
	_ = json.Unmarshal(body, &envelope)

	timestamp := envelope.Timestamp
	if timestamp == "" {
		timestamp = envelope.CreatedAt
	}

	return idempotency.DedupKey(source, requestID, envelope.ID.String(), timestamp, body)
}
