package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-assistant/internal/errors"
	"sales-assistant/internal/middleware"
	"sales-assistant/internal/observability"
	"sales-assistant/internal/services"
	"sales-assistant/internal/ui/templates"
)

type SSEHandlers struct {
	assistant *services.Assistant
	logger    *slog.Logger
}

func NewSSEHandlers(assistant *services.Assistant, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		assistant: assistant,
		logger:    logger,
	}
}

// askSignals are the page signals sent with each question.
type askSignals struct {
	Question string `json:"question"`
	Intent   string `json:"intent"`
}

func (h *SSEHandlers) renderAnswer(r *http.Request, messages []string, unanswered bool) (string, error) {
	var buf strings.Builder
	err := templates.Answer(messages, unanswered).Render(r.Context(), &buf)
	return buf.String(), err
}

// HandleAsk answers the question in the page signals and patches #answer.
func (h *SSEHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var signals askSignals
	var reply services.Reply
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read signals", "error", err, "request_id", requestID)
		reply = services.Reply{
			Messages: []string{errors.UserMessage(errors.BadRequest("invalid signals"))},
			Code:     errors.CodeBadRequest,
		}
	} else {
		reply = h.assistant.Handle(r.Context(), services.Request{
			Intent: signals.Intent,
			Text:   signals.Question,
		})
	}

	middleware.TagAnswer(w, string(reply.Intent), string(reply.Code))
	html, err := h.renderAnswer(r, reply.Messages, reply.Code != "")
	if err != nil {
		h.logger.Error("render answer", "error", err, "request_id", requestID)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElements(html); err != nil {
		h.logger.Warn("patch answer", "error", err, "request_id", requestID)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
