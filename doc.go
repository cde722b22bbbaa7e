// Package pollingclient provides a checkpoint-driven polling client that pulls
// ordered commits from an event store and hands them, one at a time, to a
// user-supplied Handler.
//
// The store owns durable storage and ordering; the client owns consumption
// progress and delivery cadence:
//   - the cursor (checkpoint token) only moves forward, after a commit is handled
//   - at most one poll cycle runs at a time, whether triggered by the background
//     loop or by PollNow
//   - the handler decides per commit whether to continue, retry or stop
//
// Delivery is at-least-once; handlers must be idempotent. The checkpoint lives
// in memory only, so callers that need to resume after a restart persist the
// token themselves (see package checkpoint) and pass it back to StartFrom.
//
// Commit stores live in the memory and postgres packages.
package pollingclient
