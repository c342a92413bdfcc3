package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"silverline-hq/portcullis/pkg/admin"
	"silverline-hq/portcullis/pkg/engine"
	"silverline-hq/portcullis/pkg/rules"
	"silverline-hq/portcullis/pkg/store"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Type: errType, Message: message}})
}

// evaluateHandler serves POST /v1/evaluate: one admission decision per call.
type evaluateHandler struct {
	engine *engine.Engine
}

func (h *evaluateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	verdict, err := h.engine.Evaluate(r.Context(), req)
	switch {
	case err == nil:
		status := http.StatusOK
		if !verdict.Allowed {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, verdict)

	case errors.Is(err, rules.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, store.ErrUnavailable):
		// Denied, not an internal fault: the backing store is down and
		// the engine fails closed.
		writeJSON(w, http.StatusServiceUnavailable, verdict)

	default:
		slog.Error("evaluate failed", "error", err, "user_id", req.UserID)
		writeError(w, http.StatusInternalServerError, "internal_error", "evaluation failed")
	}
}

// statusHandler serves GET /v1/status: the admin health snapshot.
type statusHandler struct {
	admin *admin.Service
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	status := h.admin.Status(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// healthHandler serves GET /healthz for liveness probes.
type healthHandler struct{}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
