package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/cloudcost-notify/internal/channel"
	"github.com/rickgao/cloudcost-notify/internal/sink"
	"github.com/rickgao/cloudcost-notify/internal/version"
)

// channelStats is satisfied by *channel.Channel.
type channelStats interface {
	Stats() channel.Stats
}

// healthDeps are the components reported on /health.
type healthDeps struct {
	channel channelStats
	pumps   []*sink.Pump
	checks  map[string]func(context.Context) error // Backend pings by sink name
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(deps healthDeps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := deps.channel.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Channel    channel.Stats          `json:"channel"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Channel:    stats,
			Components: make(map[string]interface{}),
		}

		switch stats.State {
		case channel.StateConnected:
		case channel.StateDisconnected:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		for _, p := range deps.pumps {
			component := map[string]interface{}{"metrics": p.Stats()}
			if check, ok := deps.checks[p.Name()]; ok {
				if err := check(ctx); err != nil {
					component["status"] = "disconnected"
					component["error"] = err.Error()
					if health.Status == "healthy" {
						health.Status = "degraded"
					}
				} else {
					component["status"] = "connected"
				}
			}
			health.Components[p.Name()] = component
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	return mux
}
