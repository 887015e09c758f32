package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sales-assistant/internal/errors"
	"sales-assistant/internal/middleware"
	"sales-assistant/internal/models"
	"sales-assistant/internal/observability"
	"sales-assistant/internal/services"
)

const (
	maxRequestBytes = 64 << 10
	vocabularyCache = "public, max-age=60"
	version         = "1.0.0"
)

type APIHandlers struct {
	assistant *services.Assistant
	logger    *slog.Logger
}

func NewAPIHandlers(assistant *services.Assistant, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		assistant: assistant,
		logger:    logger,
	}
}

// HandleAsk answers one question. Questions that cannot be answered still
// succeed; the reply explains why and carries the code.
func (h *APIHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req services.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Request body must be a JSON question"), requestID)
		return
	}

	reply := h.assistant.Handle(r.Context(), req)
	middleware.TagAnswer(w, string(reply.Intent), string(reply.Code))
	errors.WriteSuccess(w, reply)
}

func (h *APIHandlers) HandleVocabulary(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	column, ok := models.ParseColumn(r.PathValue("column"))
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("Unknown column "+r.PathValue("column")), requestID)
		return
	}

	snap, err := h.assistant.Store().Snapshot(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, errors.DataUnavailable(err), requestID)
		return
	}

	values := snap.Values(column)
	if values == nil {
		values = []string{}
	}

	w.Header().Set("Cache-Control", vocabularyCache)
	errors.WriteSuccess(w, map[string]any{
		"column": column,
		"values": values,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.assistant.Store().Stats()

	errors.WriteSuccess(w, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        version,
		"dataset_loaded": stats["loaded"],
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	store := h.assistant.Store()

	stats := store.Stats()
	stats["loads"] = store.Loads()
	stats["queries"] = h.assistant.Queries()

	errors.WriteSuccess(w, stats)
}

// HandleReload reads the dataset source again. A failed reload leaves the
// current snapshot in place.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	if _, err := h.assistant.Store().Reload(r.Context()); err != nil {
		errors.WriteError(w, h.logger, errors.ReloadFailed(err), requestID)
		return
	}

	h.logger.Info("dataset reloaded", "request_id", requestID)
	errors.WriteSuccess(w, h.assistant.Store().Stats())
}
