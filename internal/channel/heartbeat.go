package channel

import (
	"fmt"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/router"
)

func (c *Channel) startHeartbeat() {
	c.heartbeat.arm(c, c.cfg.HeartbeatInterval, c.heartbeatTick)
}

// heartbeatTick sends a client ping. A failed ping is reported but does not
// tear the connection down; transport loss is detected by the transport.
func (c *Channel) heartbeatTick() {
	if c.state != StateConnected {
		return
	}
	if err := c.sendJSON(envelope.NewPing(c.clock.Now())); err != nil {
		c.logger.Warn("heartbeat failed", "error", err)
		c.emitError(fmt.Errorf("heartbeat: %w", err))
	}
	c.startHeartbeat()
}

// handleControl answers server pings and absorbs pongs. Control frames never
// reach subscribers.
func (c *Channel) handleControl(env envelope.Envelope) {
	switch env.Type {
	case envelope.TypePing:
		var ping envelope.Ping
		if err := env.Decode(&ping); err != nil {
			c.emitError(fmt.Errorf("%w: %w", router.ErrMalformedFrame, err))
			return
		}
		serverTime := ping.ServerTime
		if serverTime == "" {
			serverTime = env.Timestamp
		}
		if err := c.sendJSON(envelope.NewPong(serverTime)); err != nil {
			c.emitError(fmt.Errorf("pong: %w", err))
		}
	case envelope.TypePong:
		c.logger.Debug("pong received", "timestamp", env.Timestamp)
	}
}

func (c *Channel) updateFilters(f envelope.FilterSet) {
	c.filters = &f
	if c.state == StateConnected {
		c.announceFilters()
	}
}

// announceFilters sends the declared filter set as a subscribe message.
func (c *Channel) announceFilters() {
	if c.filters == nil {
		return
	}
	if err := c.sendJSON(envelope.NewSubscribe(*c.filters)); err != nil {
		c.emitError(fmt.Errorf("subscribe: %w", err))
		return
	}
	c.logger.Debug("filters announced",
		"message_types", len(c.filters.MessageTypes),
		"account_ids", len(c.filters.AccountIDs),
	)
}
