// Package postgres provides PostgreSQL implementations of the commit store
// and the checkpoint store.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq" // PostgreSQL driver

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

var errEmptyTableName = errors.New("table name must not be empty")

// quoteIdentifier quotes a PostgreSQL identifier so table names coming from
// configuration cannot break out of the statement.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// InitSchema creates the commit table and its indexes if they don't exist.
func InitSchema(db *sql.DB, tableName string) error {
	if tableName == "" {
		return errEmptyTableName
	}

	table := quoteIdentifier(tableName)
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		checkpoint_token BIGSERIAL PRIMARY KEY,
		bucket_id VARCHAR(255) NOT NULL,
		stream_id VARCHAR(255) NOT NULL,
		stream_revision BIGINT NOT NULL,
		commit_id VARCHAR(255) NOT NULL,
		commit_sequence BIGINT NOT NULL,
		commit_stamp TIMESTAMP WITH TIME ZONE NOT NULL,
		headers JSONB,
		events JSONB NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(bucket_id, stream_id, commit_sequence);
	CREATE INDEX IF NOT EXISTS %s ON %s(bucket_id, checkpoint_token);
	`, table,
		quoteIdentifier("idx_"+tableName+"_stream_sequence"), table,
		quoteIdentifier("idx_"+tableName+"_bucket_checkpoint"), table)

	if _, err := db.Exec(query); err != nil {
		return errors.Wrapf(err, "failed to create commit table %s", tableName)
	}
	return nil
}

// InitCheckpointSchema creates the checkpoint table if it doesn't exist.
func InitCheckpointSchema(db *sql.DB, tableName string) error {
	if tableName == "" {
		return errEmptyTableName
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		name VARCHAR(255) PRIMARY KEY,
		checkpoint_token BIGINT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	`, quoteIdentifier(tableName))

	if _, err := db.Exec(query); err != nil {
		return errors.Wrapf(err, "failed to create checkpoint table %s", tableName)
	}
	return nil
}

// storedEvent is the JSON shape of one event in the events column.
type storedEvent struct {
	Type     string            `json:"type"`
	Data     []byte            `json:"data"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func marshalEvents(events []pollingclient.Event) ([]byte, error) {
	stored := make([]storedEvent, len(events))
	for i, e := range events {
		stored[i] = storedEvent{Type: e.Type, Data: e.Data, Metadata: e.Metadata}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal events")
	}
	return data, nil
}

func unmarshalEvents(data []byte) ([]pollingclient.Event, error) {
	var stored []storedEvent
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal events")
	}
	events := make([]pollingclient.Event, len(stored))
	for i, e := range stored {
		events[i] = pollingclient.Event{Type: e.Type, Data: e.Data, Metadata: e.Metadata}
	}
	return events, nil
}

func unmarshalHeaders(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal headers")
	}
	return headers, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
