package main

import (
	"log/slog"

	"github.com/rickgao/cloudcost-notify/internal/channel"
	"github.com/rickgao/cloudcost-notify/internal/envelope"
)

// logEvents subscribes a logger to every channel notification.
// Handlers run on the channel event loop and must not block.
func logEvents(ch *channel.Channel, logger *slog.Logger) {
	ch.OnConnected(func(e channel.ConnectedEvent) {
		logger.Info("channel connected", "epoch", e.Epoch)
	})
	ch.OnDisconnected(func(e channel.DisconnectedEvent) {
		logger.Info("channel disconnected",
			"code", e.Code,
			"reason", e.Reason,
			"manual", e.Manual,
		)
	})
	ch.OnReconnecting(func(e channel.ReconnectingEvent) {
		logger.Info("channel reconnecting",
			"attempt", e.Attempt,
			"max_attempts", e.MaxAttempts,
			"delay", e.Delay,
		)
	})
	ch.OnError(func(e channel.ErrorEvent) {
		logger.Warn("channel error", "error", e.Cause)
	})

	ch.OnCostUpdate(func(m envelope.CostUpdate) {
		logger.Info("cost update", "account_id", m.AccountID, "message", m.Message)
	})
	ch.OnWasteDetected(func(m envelope.WasteDetected) {
		logger.Info("waste detected", "account_id", m.AccountID, "items", m.ItemsCount)
	})
	ch.OnRecommendationReady(func(m envelope.RecommendationReady) {
		logger.Info("recommendations ready",
			"account_id", m.AccountID,
			"count", m.RecommendationsCount,
			"potential_savings", m.TotalPotentialSavings,
		)
	})
	ch.OnJobStatus(func(m envelope.JobStatus) {
		logger.Info("job status", "job_id", m.JobID, "status", m.Status)
	})
	ch.OnAccountStatus(func(m envelope.AccountStatus) {
		logger.Info("account status", "account_id", m.AccountID, "status", m.Status)
	})
	ch.OnServerError(func(m envelope.ServerError) {
		logger.Warn("server error", "message", m.Message)
	})
	ch.OnMessage(func(env envelope.Envelope) {
		logger.Info("message", "type", env.Type, "payload", string(env.Raw))
	})
}
