package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/shogotsuneto/go-simple-pollingclient/checkpoint"
)

var _ checkpoint.Store = (*CheckpointStore)(nil)

// CheckpointStore keeps one row per consumer name. Saved tokens never move
// backwards.
type CheckpointStore struct {
	db        *sql.DB
	tableName string
}

// NewCheckpointStore creates a checkpoint store on an existing connection pool.
// Call InitCheckpointSchema first if the table may not exist yet.
func NewCheckpointStore(db *sql.DB, tableName string) (*CheckpointStore, error) {
	if tableName == "" {
		return nil, errEmptyTableName
	}
	return &CheckpointStore{db: db, tableName: tableName}, nil
}

func (s *CheckpointStore) Load(ctx context.Context, name string) (int64, error) {
	var token int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT checkpoint_token FROM %s WHERE name = $1", quoteIdentifier(s.tableName)),
		name,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, checkpoint.ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load checkpoint %q", name)
	}
	return token, nil
}

func (s *CheckpointStore) Save(ctx context.Context, name string, token int64) error {
	table := quoteIdentifier(s.tableName)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s AS c (name, checkpoint_token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET checkpoint_token = GREATEST(c.checkpoint_token, EXCLUDED.checkpoint_token),
			updated_at = now()
	`, table), name, token)
	if err != nil {
		return errors.Wrapf(err, "failed to save checkpoint %q", name)
	}
	return nil
}
