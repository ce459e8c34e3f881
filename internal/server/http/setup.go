package http

import (
	"net/http"
)

func (h *Handler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.collector.SetupStatus(r.Context()))
}

func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	if err := h.collector.Setup(r.Context()); err != nil {
		h.error(err, w)
		return
	}
	h.respond(w, http.StatusOK, h.collector.SetupStatus(r.Context()))
}
