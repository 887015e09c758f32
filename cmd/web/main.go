package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-assistant/internal/config"
	"sales-assistant/internal/dataset"
	"sales-assistant/internal/middleware"
	"sales-assistant/internal/observability"
	"sales-assistant/internal/resolve"
	"sales-assistant/internal/server"
	"sales-assistant/internal/services"
	"sales-assistant/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

func intentNames() []string {
	intents := services.Intents()
	names := make([]string, 0, len(intents))
	for _, intent := range intents {
		if intent != services.IntentTotalSales {
			names = append(names, string(intent))
		}
	}
	return names
}

func handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Ask(intentNames()).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newAssistant wires the dataset store and period resolver from cfg.
func newAssistant(cfg *config.Config, logger *slog.Logger) (*services.Assistant, error) {
	source, err := dataset.NewSource(dataset.Options{
		Driver:   cfg.Dataset.Driver,
		Path:     cfg.Dataset.Path,
		DSN:      cfg.Dataset.DSN,
		Table:    cfg.Dataset.Table,
		Sheet:    cfg.Dataset.Sheet,
		CacheDir: cfg.Dataset.CacheDir,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	policy, err := resolve.ParsePolicy(cfg.Query.LastNMonthsAnchor, cfg.Query.LastNMonthsAverage)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store := dataset.NewStore(source, logger)
	resolver := resolve.New(resolve.SystemClock{Location: loc}, policy)
	return services.NewAssistant(store, resolver, logger), nil
}

func newHandler(cfg *config.Config, logger *slog.Logger, assistant *services.Assistant) http.Handler {
	srv := server.NewServer(assistant, logger, &server.TemplateHandlers{Ask: handleAsk}, cfg.Security.AdminToken)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"address", cfg.Address(),
		"dataset_driver", cfg.Dataset.Driver,
		"dataset_path", cfg.Dataset.Path,
		"last_n_months_anchor", cfg.Query.LastNMonthsAnchor,
		"last_n_months_average", cfg.Query.LastNMonthsAverage,
	)

	assistant, err := newAssistant(cfg, logger)
	if err != nil {
		logger.Error("failed to configure dataset", "error", err)
		os.Exit(1)
	}

	// Without preload the first question triggers the load. A failed preload
	// is retried by that first question.
	if cfg.Dataset.Preload {
		ctx, cancel := context.WithTimeout(context.Background(), dataset.DefaultLoadTimeout)
		start := time.Now()
		if _, err := assistant.Store().Snapshot(ctx); err != nil {
			logger.Warn("dataset preload failed, answers will report the data as unavailable", "error", err)
		} else {
			logger.Info("dataset preloaded", "duration", time.Since(start))
		}
		cancel()
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, assistant),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.OnShutdown("assistant", func(ctx context.Context) error {
		logger.Info("shutting down sales assistant", "queries", assistant.Queries())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
