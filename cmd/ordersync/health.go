package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/poller"
	"github.com/rickgao/ordersync/internal/querycache"
	"github.com/rickgao/ordersync/internal/session"
	"github.com/rickgao/ordersync/internal/version"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

type healthDeps struct {
	session   *session.Session
	cache     *querycache.Cache
	namespace querycache.Namespace
	db        pinger // nil without a database
	poller    *poller.Poller
}

// newHealthHandler creates the HTTP handler for health checks.
func newHealthHandler(deps healthDeps, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		// Realtime connection: cached views still serve while it is down
		state := deps.session.State()
		health.Components["realtime"] = map[string]any{
			"state":    state.String(),
			"attempts": deps.session.Stats().Connection.Attempts,
		}
		if state != connection.StateConnected {
			health.Status = "degraded"
		}

		// Check database
		if deps.db != nil {
			if err := deps.db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		health.Components["cache"] = map[string]any{
			"views": len(deps.cache.Views(deps.namespace)),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/views", func(w http.ResponseWriter, r *http.Request) {
		type viewSummary struct {
			Params    querycache.Params `json:"params"`
			Orders    int               `json:"orders"`
			IDs       []string          `json:"ids"`
			LoadedAt  time.Time         `json:"loaded_at"`
			UpdatedAt time.Time         `json:"updated_at"`
		}

		views := deps.cache.Views(deps.namespace)
		out := make([]viewSummary, 0, len(views))
		for _, v := range views {
			out = append(out, viewSummary{
				Params:    v.Params,
				Orders:    len(v.Orders),
				IDs:       model.IDs(v.Orders),
				LoadedAt:  v.LoadedAt,
				UpdatedAt: v.UpdatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"namespace": deps.namespace,
			"count":     len(out),
			"views":     out,
		})
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"session": deps.session.Stats(),
			"cache":   deps.cache.Stats(),
		}
		if deps.poller != nil {
			stats["poller"] = deps.poller.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}
