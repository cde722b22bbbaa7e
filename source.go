package pollingclient

import "context"

// DefaultPageSize bounds how many commits a store returns from one GetFrom call.
const DefaultPageSize = 512

// CommitSource is the only thing the polling client needs from a store.
type CommitSource interface {
	// GetFrom returns commits from every bucket strictly after checkpoint,
	// ordered by CheckpointToken ascending.
	GetFrom(ctx context.Context, checkpoint int64) ([]Commit, error)

	// GetFromBucket returns commits of a single bucket strictly after checkpoint,
	// ordered by CheckpointToken ascending.
	GetFromBucket(ctx context.Context, bucketID string, checkpoint int64) ([]Commit, error)
}
