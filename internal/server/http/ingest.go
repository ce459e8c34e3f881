package http

import (
	"encoding/json"
	"net/http"

	"github.com/leshachaplin/testgenie/internal/apierror"
	"github.com/leshachaplin/testgenie/internal/domain"
)

const maxBodyBytes = 1 << 20

type successResponse struct {
	Success bool `json:"success"`
}

// Usage accepts a structured event: {event, timestamp, sessionId, userInfo, data}.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	var e domain.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&e); err != nil {
		h.error(apierror.BadRequest("Invalid JSON body"), w)
		return
	}

	if err := h.collector.IngestUsage(r.Context(), e); err != nil {
		h.error(err, w)
		return
	}
	h.respond(w, http.StatusOK, successResponse{Success: true})
}

// Analytics accepts a flat action payload: {action, timestamp, ...}.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		h.error(apierror.BadRequest("Invalid JSON body"), w)
		return
	}

	if err := h.collector.IngestAction(r.Context(), payload); err != nil {
		h.error(err, w)
		return
	}
	h.respond(w, http.StatusOK, successResponse{Success: true})
}
