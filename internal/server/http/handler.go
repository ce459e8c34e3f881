package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/testgenie/internal/apierror"
	"github.com/leshachaplin/testgenie/internal/service"
	"github.com/leshachaplin/testgenie/internal/storage/event"
)

type Handler struct {
	collector service.Collector
	logger    zerolog.Logger
}

func NewHandler(collector service.Collector, logger zerolog.Logger) *Handler {
	return &Handler{
		collector: collector,
		logger:    logger,
	}
}

func (h *Handler) error(err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	var (
		apiErr        apierror.Error
		validationErr *service.ValidationError
		schemaErr     *event.SchemaError
	)
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &validationErr):
		apiErr = apierror.BadRequest(validationErr.Error())
	case errors.As(err, &schemaErr):
		apiErr = apierror.Internal("Failed to record analytics").
			WithDetails(map[string]interface{}{"store": schemaErr.Store})
		h.logger.Error().Err(err).Msg("schema error")
	default:
		apiErr = apierror.Internal(err.Error())
		h.logger.Error().Err(err).Msg("request failed")
	}

	w.WriteHeader(apiErr.StatusCode())
	if err = json.NewEncoder(w).Encode(apiErr); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode error response")
	}
}

func (h *Handler) respond(w http.ResponseWriter, code int, data any) {
	if err := encodeJSONResponse(w, code, data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
