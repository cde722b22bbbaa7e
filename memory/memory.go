// Package memory provides an in-memory commit store implementing both
// pollingclient.EventStore and pollingclient.CommitSource.
// It is suitable for testing and demonstration purposes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

// Compile-time interface compliance checks
var (
	_ pollingclient.EventStore   = (*CommitStore)(nil)
	_ pollingclient.CommitSource = (*CommitStore)(nil)
)

type streamKey struct {
	bucketID string
	streamID string
}

// CommitStore keeps every commit in a single slice in global order, so the
// checkpoint token of a commit is its 1-based position in that slice.
type CommitStore struct {
	mu       sync.RWMutex
	commits  []pollingclient.Commit
	streams  map[streamKey][]int // indexes into commits
	pageSize int
	now      func() time.Time
}

// Option configures a CommitStore.
type Option func(*CommitStore)

// WithPageSize bounds the number of commits returned by GetFrom and GetFromBucket.
func WithPageSize(n int) Option {
	return func(s *CommitStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the time source used for commit stamps.
func WithClock(now func() time.Time) Option {
	return func(s *CommitStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCommitStore creates a new in-memory commit store.
func NewCommitStore(opts ...Option) *CommitStore {
	s := &CommitStore{
		streams:  make(map[streamKey][]int),
		pageSize: pollingclient.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes events as one commit to the given stream.
func (s *CommitStore) Append(bucketID, streamID string, events []pollingclient.Event, expectedRevision int64) (pollingclient.Commit, error) {
	if len(events) == 0 {
		return pollingclient.Commit{}, nil
	}
	if bucketID == "" {
		bucketID = pollingclient.DefaultBucketID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey{bucketID: bucketID, streamID: streamID}
	stream := s.streams[key]

	var currentRevision int64
	if len(stream) > 0 {
		currentRevision = s.commits[stream[len(stream)-1]].StreamRevision
	}

	// Check expected revision for optimistic concurrency control
	if expectedRevision != -1 {
		if expectedRevision == 0 && currentRevision != 0 {
			return pollingclient.Commit{}, &pollingclient.ErrStreamAlreadyExists{
				BucketID:       bucketID,
				StreamID:       streamID,
				ActualRevision: currentRevision,
			}
		}
		if expectedRevision > 0 && currentRevision != expectedRevision {
			return pollingclient.Commit{}, &pollingclient.ErrVersionMismatch{
				BucketID:         bucketID,
				StreamID:         streamID,
				ExpectedRevision: expectedRevision,
				ActualRevision:   currentRevision,
			}
		}
	}

	sequence := int64(len(stream) + 1)
	commit := pollingclient.Commit{
		BucketID:        bucketID,
		StreamID:        streamID,
		CommitID:        fmt.Sprintf("%s-%d", streamID, sequence),
		StreamRevision:  currentRevision + int64(len(events)),
		CommitSequence:  sequence,
		CommitStamp:     s.now(),
		Events:          append([]pollingclient.Event(nil), events...),
		CheckpointToken: int64(len(s.commits) + 1),
	}

	s.commits = append(s.commits, commit)
	s.streams[key] = append(stream, len(s.commits)-1)

	return commit, nil
}

// Load retrieves commits for the given stream using the specified options.
func (s *CommitStore) Load(bucketID, streamID string, opts pollingclient.LoadOptions) ([]pollingclient.Commit, error) {
	if bucketID == "" {
		bucketID = pollingclient.DefaultBucketID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []pollingclient.Commit{}
	for _, idx := range s.streams[streamKey{bucketID: bucketID, streamID: streamID}] {
		commit := s.commits[idx]
		if commit.StreamRevision <= opts.AfterRevision {
			continue
		}
		result = append(result, commit)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}

	return result, nil
}

// GetFrom returns up to one page of commits from all buckets after checkpoint.
func (s *CommitStore) GetFrom(ctx context.Context, checkpoint int64) ([]pollingclient.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if checkpoint < 0 {
		checkpoint = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if checkpoint >= int64(len(s.commits)) {
		return []pollingclient.Commit{}, nil
	}

	end := checkpoint + int64(s.pageSize)
	if end > int64(len(s.commits)) {
		end = int64(len(s.commits))
	}

	result := make([]pollingclient.Commit, end-checkpoint)
	copy(result, s.commits[checkpoint:end])
	return result, nil
}

// GetFromBucket returns up to one page of commits of bucketID after checkpoint.
func (s *CommitStore) GetFromBucket(ctx context.Context, bucketID string, checkpoint int64) ([]pollingclient.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if checkpoint < 0 {
		checkpoint = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []pollingclient.Commit{}
	for i := checkpoint; i < int64(len(s.commits)); i++ {
		if s.commits[i].BucketID != bucketID {
			continue
		}
		result = append(result, s.commits[i])
		if len(result) >= s.pageSize {
			break
		}
	}

	return result, nil
}
