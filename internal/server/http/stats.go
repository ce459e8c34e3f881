package http

import (
	"net/http"
	"time"
)

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)
	h.respond(w, http.StatusOK, h.collector.Stats(r.Context(), page, limit))
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.collector.RecentInstalls(r.Context()))
}

func (h *Handler) UsageOverTime(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.collector.UsageOverTime(r.Context()))
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.collector.Users(r.Context()))
}

type dataResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Data dumps the in-memory buffer.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	records := h.collector.Buffered()
	h.respond(w, http.StatusOK, dataResponse{
		Success:   true,
		Data:      records,
		Count:     len(records),
		Timestamp: time.Now().UTC(),
	})
}
