package pollingclient

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultBucketID is the bucket stores use when none is specified.
const DefaultBucketID = "default"

// Event represents a single event carried by a commit.
type Event struct {
	// Type describes the kind of event
	Type string
	// Data contains the event payload
	Data []byte
	// Metadata contains additional event information
	Metadata map[string]string
}

// Commit is one ordered, position-stamped record from the event store.
// The polling client only interprets CheckpointToken; everything else is payload.
type Commit struct {
	// BucketID is the partition the commit belongs to
	BucketID string
	// StreamID identifies the stream inside the bucket
	StreamID string
	// CommitID is a unique identifier for the commit
	CommitID string
	// StreamRevision is the revision of the stream after the last event of this commit
	StreamRevision int64
	// CommitSequence is the 1-based position of the commit in its stream
	CommitSequence int64
	// CommitStamp is when the commit was persisted
	CommitStamp time.Time
	// Headers contains commit-level metadata
	Headers map[string]string
	// Events are the events written together in this commit
	Events []Event
	// CheckpointToken is the global, strictly increasing position of the commit
	CheckpointToken int64
}

// LoadOptions contains options for loading commits from a stream.
type LoadOptions struct {
	// AfterRevision loads commits whose StreamRevision is greater than this value
	AfterRevision int64
	// Limit specifies the maximum number of commits to return
	Limit int
}

// EventStore defines the write side used to produce commits.
type EventStore interface {
	// Append writes events as a single commit to the given stream.
	// expectedRevision is used for optimistic concurrency control:
	// - If expectedRevision is -1, the stream can be in any state (no concurrency check)
	// - If expectedRevision is 0, the stream must not exist (stream creation)
	// - If expectedRevision > 0, the stream must be at exactly that revision
	Append(bucketID, streamID string, events []Event, expectedRevision int64) (Commit, error)

	// Load retrieves commits for the given stream using the specified options.
	Load(bucketID, streamID string, opts LoadOptions) ([]Commit, error)
}

// ErrVersionMismatch indicates that the expected revision does not match the actual stream revision.
type ErrVersionMismatch struct {
	BucketID         string
	StreamID         string
	ExpectedRevision int64
	ActualRevision   int64
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("expected revision %d but stream '%s/%s' is at revision %d", e.ExpectedRevision, e.BucketID, e.StreamID, e.ActualRevision)
}

// Is reports ErrConcurrencyConflict as a match so callers can test the category.
func (e *ErrVersionMismatch) Is(target error) bool { return target == ErrConcurrencyConflict }

// ErrStreamAlreadyExists indicates that a stream already exists when it was expected to be new.
type ErrStreamAlreadyExists struct {
	BucketID       string
	StreamID       string
	ActualRevision int64
}

func (e *ErrStreamAlreadyExists) Error() string {
	return fmt.Sprintf("expected new stream '%s/%s' (revision 0) but stream already exists at revision %d", e.BucketID, e.StreamID, e.ActualRevision)
}

func (e *ErrStreamAlreadyExists) Is(target error) bool { return target == ErrConcurrencyConflict }

var (
	// ErrConcurrencyConflict is returned when an optimistic concurrency check fails.
	ErrConcurrencyConflict = errors.New("concurrency conflict detected")
)
