package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

// Compile-time interface compliance checks
var (
	_ pollingclient.EventStore   = (*CommitStore)(nil)
	_ pollingclient.CommitSource = (*CommitStore)(nil)
)

const commitColumns = "checkpoint_token, bucket_id, stream_id, stream_revision, commit_id, commit_sequence, commit_stamp, headers, events"

// CommitStore is a PostgreSQL implementation of EventStore and CommitSource.
// The checkpoint token of a commit is its BIGSERIAL row id.
type CommitStore struct {
	db        *sql.DB
	tableName string
	pageSize  int
	now       func() time.Time
}

type Option func(*CommitStore)

// WithPageSize bounds the number of commits returned by GetFrom and GetFromBucket.
func WithPageSize(n int) Option {
	return func(s *CommitStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewCommitStore creates a commit store on an existing connection pool.
// Call InitSchema first if the table may not exist yet.
func NewCommitStore(db *sql.DB, tableName string, opts ...Option) (*CommitStore, error) {
	if tableName == "" {
		return nil, errEmptyTableName
	}

	s := &CommitStore{
		db:        db,
		tableName: tableName,
		pageSize:  pollingclient.DefaultPageSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append writes events as one commit to the given stream.
func (s *CommitStore) Append(bucketID, streamID string, events []pollingclient.Event, expectedRevision int64) (pollingclient.Commit, error) {
	if len(events) == 0 {
		return pollingclient.Commit{}, nil
	}
	if bucketID == "" {
		bucketID = pollingclient.DefaultBucketID
	}

	eventsJSON, err := marshalEvents(events)
	if err != nil {
		return pollingclient.Commit{}, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return pollingclient.Commit{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Appends to one table are serialized so checkpoint tokens become
	// visible to readers in ascending order.
	if _, err = tx.Exec("SELECT pg_advisory_xact_lock(hashtext($1))", s.tableName); err != nil {
		return pollingclient.Commit{}, errors.Wrap(err, "failed to acquire lock")
	}

	var currentRevision, currentSequence int64
	err = tx.QueryRow(fmt.Sprintf(
		"SELECT COALESCE(MAX(stream_revision), 0), COALESCE(MAX(commit_sequence), 0) FROM %s WHERE bucket_id = $1 AND stream_id = $2",
		quoteIdentifier(s.tableName)), bucketID, streamID).Scan(&currentRevision, &currentSequence)
	if err != nil {
		return pollingclient.Commit{}, errors.Wrap(err, "failed to get stream revision")
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

	commit := pollingclient.Commit{
		BucketID:       bucketID,
		StreamID:       streamID,
		CommitID:       fmt.Sprintf("%s-%d", streamID, currentSequence+1),
		StreamRevision: currentRevision + int64(len(events)),
		CommitSequence: currentSequence + 1,
		CommitStamp:    s.now().UTC(),
		Events:         events,
	}

	err = tx.QueryRow(fmt.Sprintf(`
		INSERT INTO %s (bucket_id, stream_id, stream_revision, commit_id, commit_sequence, commit_stamp, headers, events)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING checkpoint_token
	`, quoteIdentifier(s.tableName)),
		commit.BucketID, commit.StreamID, commit.StreamRevision, commit.CommitID,
		commit.CommitSequence, commit.CommitStamp, nil, eventsJSON,
	).Scan(&commit.CheckpointToken)
	if err != nil {
		if isUniqueViolation(err) {
			return pollingclient.Commit{}, errors.Wrapf(pollingclient.ErrConcurrencyConflict, "commit %s already exists", commit.CommitID)
		}
		return pollingclient.Commit{}, errors.Wrap(err, "failed to insert commit")
	}

	if err := tx.Commit(); err != nil {
		return pollingclient.Commit{}, errors.Wrap(err, "failed to commit transaction")
	}
	return commit, nil
}

// Load retrieves commits for the given stream using the specified options.
func (s *CommitStore) Load(bucketID, streamID string, opts pollingclient.LoadOptions) ([]pollingclient.Commit, error) {
	if bucketID == "" {
		bucketID = pollingclient.DefaultBucketID
	}
	query, args := s.buildLoadQuery(bucketID, streamID, opts)
	return s.query(context.Background(), query, args...)
}

// GetFrom returns up to one page of commits from all buckets after checkpoint.
func (s *CommitStore) GetFrom(ctx context.Context, checkpoint int64) ([]pollingclient.Commit, error) {
	query, args := s.buildFetchQuery("", checkpoint)
	return s.query(ctx, query, args...)
}

// GetFromBucket returns up to one page of commits of bucketID after checkpoint.
func (s *CommitStore) GetFromBucket(ctx context.Context, bucketID string, checkpoint int64) ([]pollingclient.Commit, error) {
	query, args := s.buildFetchQuery(bucketID, checkpoint)
	return s.query(ctx, query, args...)
}

func (s *CommitStore) buildLoadQuery(bucketID, streamID string, opts pollingclient.LoadOptions) (string, []interface{}) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE bucket_id = $1 AND stream_id = $2 AND stream_revision > $3
		ORDER BY commit_sequence ASC`, commitColumns, quoteIdentifier(s.tableName))
	args := []interface{}{bucketID, streamID, opts.AfterRevision}

	if opts.Limit > 0 {
		query += " LIMIT $4"
		args = append(args, opts.Limit)
	}
	return query, args
}

// buildFetchQuery selects one page after checkpoint, across all buckets
// when bucketID is empty.
func (s *CommitStore) buildFetchQuery(bucketID string, checkpoint int64) (string, []interface{}) {
	if bucketID == "" {
		return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE checkpoint_token > $1
		ORDER BY checkpoint_token ASC
		LIMIT $2`, commitColumns, quoteIdentifier(s.tableName)), []interface{}{checkpoint, s.pageSize}
	}
	return fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE bucket_id = $1 AND checkpoint_token > $2
		ORDER BY checkpoint_token ASC
		LIMIT $3`, commitColumns, quoteIdentifier(s.tableName)), []interface{}{bucketID, checkpoint, s.pageSize}
}

func (s *CommitStore) query(ctx context.Context, query string, args ...interface{}) ([]pollingclient.Commit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query commits")
	}
	defer rows.Close()

	result := []pollingclient.Commit{}
	for rows.Next() {
		var (
			c           pollingclient.Commit
			headersJSON []byte
			eventsJSON  []byte
		)
		err := rows.Scan(&c.CheckpointToken, &c.BucketID, &c.StreamID, &c.StreamRevision,
			&c.CommitID, &c.CommitSequence, &c.CommitStamp, &headersJSON, &eventsJSON)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan commit row")
		}
		if c.Headers, err = unmarshalHeaders(headersJSON); err != nil {
			return nil, errors.Wrapf(err, "commit %d", c.CheckpointToken)
		}
		if c.Events, err = unmarshalEvents(eventsJSON); err != nil {
			return nil, errors.Wrapf(err, "commit %d", c.CheckpointToken)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}
	return result, nil
}
