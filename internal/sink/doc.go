// Package sink records received notifications outside the process.
//
// Sinks:
//   - Log (slog, one line per notification)
//   - Postgres (notification_events table, batched inserts)
//   - Redis (pub/sub republish on <prefix>:<type>)
//
// Each sink sits behind a Pump. Offer never blocks, so a Pump can be fed
// straight from a channel subscriber without stalling the event loop.
// Sinks record what arrived; nothing is replayed.
package sink
