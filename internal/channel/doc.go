// Package channel implements the real-time notification channel.
//
// The Channel:
//   - Owns one transport at a time and drives its lifecycle
//     (disconnected → connecting → connected → closing/reconnecting)
//   - Reconnects after abnormal closure with exponential backoff
//     (base × 1.5^(n-1)) up to a fixed attempt budget
//   - Sends a heartbeat ping every interval while connected and answers
//     server pings with a pong echoing the server's time
//   - Re-announces the caller's FilterSet after every successful open
//   - Routes inbound frames to typed subscribers through the Message Router
//
// All state transitions, timer callbacks and dispatch run on a single event
// loop goroutine. Public methods only enqueue work and return immediately;
// their effects surface through the On* subscriptions.
package channel
