package server

import (
	"log/slog"
	"net/http"

	"sales-assistant/internal/handlers"
	"sales-assistant/internal/middleware"
	"sales-assistant/internal/services"
)

type Server struct {
	assistant   *services.Assistant
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Ask http.HandlerFunc
}

// NewServer registers every route. adminToken guards the /admin endpoints
// when it is non-empty.
func NewServer(assistant *services.Assistant, logger *slog.Logger, templateHandlers *TemplateHandlers, adminToken string) *Server {
	s := &Server{
		assistant:   assistant,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(assistant, logger),
		sseHandlers: handlers.NewSSEHandlers(assistant, logger),
	}
	s.setupRoutes(templateHandlers, middleware.AdminToken(adminToken, logger))
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers, admin middleware.Middleware) {
	// Page
	s.mux.HandleFunc("GET /{$}", templateHandlers.Ask)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)

	// Maintenance
	s.mux.Handle("GET /admin/stats", admin(http.HandlerFunc(s.apiHandlers.HandleStats)))
	s.mux.Handle("POST /admin/reload", admin(http.HandlerFunc(s.apiHandlers.HandleReload)))

	// REST API endpoints
	s.mux.HandleFunc("POST /api/ask", s.apiHandlers.HandleAsk)
	s.mux.HandleFunc("GET /api/vocabulary/{column}", s.apiHandlers.HandleVocabulary)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/ask", s.sseHandlers.HandleAsk)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
