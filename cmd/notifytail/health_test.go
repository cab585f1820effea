package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cloudcost-notify/internal/channel"
	"github.com/rickgao/cloudcost-notify/internal/sink"
)

type staticStats channel.Stats

func (s staticStats) Stats() channel.Stats { return channel.Stats(s) }

func getHealth(t *testing.T, deps healthDeps) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	createHealthHandler(deps, slog.Default()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_Connected(t *testing.T) {
	code, body := getHealth(t, healthDeps{channel: staticStats{State: channel.StateConnected, RetryCount: 0}})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["channel"].(map[string]any)["state"])
	assert.Equal(t, "dev", body["version"].(map[string]any)["version"])
}

func TestHealth_Reconnecting(t *testing.T) {
	code, body := getHealth(t, healthDeps{channel: staticStats{State: channel.StateReconnecting, RetryCount: 2}})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	assert.EqualValues(t, 2, body["channel"].(map[string]any)["retry_count"])
}

func TestHealth_Disconnected(t *testing.T) {
	code, body := getHealth(t, healthDeps{channel: staticStats{State: channel.StateDisconnected}})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealth_SinkCheckFailure(t *testing.T) {
	pump := sink.NewPump(sink.DefaultPumpConfig(), sink.NewLog(nil, slog.LevelDebug), nil)
	deps := healthDeps{
		channel: staticStats{State: channel.StateConnected},
		pumps:   []*sink.Pump{pump},
		checks: map[string]func(context.Context) error{
			"log": func(context.Context) error { return errors.New("unreachable") },
		},
	}

	code, body := getHealth(t, deps)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])

	component := body["components"].(map[string]any)["log"].(map[string]any)
	assert.Equal(t, "disconnected", component["status"])
	assert.Equal(t, "unreachable", component["error"])
}
