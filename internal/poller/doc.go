// Package poller implements the Stats Poller.
//
// The Stats Poller:
//   - Asks the server for connection statistics on a fixed interval
//   - Skips ticks while the channel is not connected
//   - Leaves the reply to the channel's generic message subscribers
package poller
