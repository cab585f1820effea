// Package router implements the Message Router component.
//
// The Message Router:
//   - Parses each inbound frame into an envelope
//   - Drops malformed frames and reports them to the caller (never to subscribers)
//   - Reports typed payloads that fail to decode but still passes them to raw subscribers
//   - Intercepts ping/pong control traffic before user-facing dispatch
//   - Dispatches recognized types to their typed subscribers, anything else to
//     the generic message subscribers
//   - Publishes every parsed, non-control envelope to the raw subscribers,
//     after the type-specific dispatch, in the same synchronous pass
package router
