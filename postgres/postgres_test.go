package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple table name", "commits", `"commits"`},
		{"table name with underscores", "custom_commits", `"custom_commits"`},
		{"table name with spaces", "my commits", `"my commits"`},
		{"table name with double quotes", `table"name`, `"table""name"`},
		{"table name with multiple double quotes", `"table""name"`, `"""table""""name"""`},
		{"empty string", "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quoteIdentifier(tt.input))
		})
	}
}

func TestEmptyTableName(t *testing.T) {
	err := InitSchema(nil, "")
	require.EqualError(t, err, "table name must not be empty")

	err = InitCheckpointSchema(nil, "")
	require.EqualError(t, err, "table name must not be empty")

	store, err := NewCommitStore(nil, "")
	require.EqualError(t, err, "table name must not be empty")
	assert.Nil(t, store)

	cps, err := NewCheckpointStore(nil, "")
	require.EqualError(t, err, "table name must not be empty")
	assert.Nil(t, cps)
}

func TestNewCommitStore_PageSize(t *testing.T) {
	store, err := NewCommitStore(nil, "commits")
	require.NoError(t, err)
	assert.Equal(t, pollingclient.DefaultPageSize, store.pageSize)

	store, err = NewCommitStore(nil, "commits", WithPageSize(50), WithPageSize(-1))
	require.NoError(t, err)
	assert.Equal(t, 50, store.pageSize)
}

func TestBuildLoadQuery(t *testing.T) {
	store := &CommitStore{tableName: "test_commits"}

	tests := []struct {
		name         string
		opts         pollingclient.LoadOptions
		expectedSQL  []string
		expectedArgs []interface{}
	}{
		{
			name:         "after revision with limit",
			opts:         pollingclient.LoadOptions{AfterRevision: 10, Limit: 5},
			expectedSQL:  []string{"WHERE bucket_id = $1 AND stream_id = $2 AND stream_revision > $3", "ORDER BY commit_sequence ASC", "LIMIT $4"},
			expectedArgs: []interface{}{"default", "stream-1", int64(10), 5},
		},
		{
			name:         "without limit",
			opts:         pollingclient.LoadOptions{},
			expectedSQL:  []string{"stream_revision > $3", "ORDER BY commit_sequence ASC"},
			expectedArgs: []interface{}{"default", "stream-1", int64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := store.buildLoadQuery("default", "stream-1", tt.opts)
			for _, part := range tt.expectedSQL {
				assert.Contains(t, query, part)
			}
			assert.Equal(t, tt.expectedArgs, args)
			assert.Contains(t, query, `"test_commits"`)
			assert.Contains(t, query, "SELECT "+commitColumns)
		})
	}

	query, _ := store.buildLoadQuery("default", "stream-1", pollingclient.LoadOptions{})
	assert.NotContains(t, query, "LIMIT")
}

func TestBuildFetchQuery(t *testing.T) {
	store := &CommitStore{tableName: "test_commits", pageSize: 100}

	query, args := store.buildFetchQuery("", 42)
	assert.Contains(t, query, "WHERE checkpoint_token > $1")
	assert.Contains(t, query, "ORDER BY checkpoint_token ASC")
	assert.Contains(t, query, "LIMIT $2")
	assert.NotContains(t, query, "bucket_id =")
	assert.Equal(t, []interface{}{int64(42), 100}, args)

	query, args = store.buildFetchQuery("tenant-a", 7)
	assert.Contains(t, query, "WHERE bucket_id = $1 AND checkpoint_token > $2")
	assert.Contains(t, query, "LIMIT $3")
	assert.Equal(t, []interface{}{"tenant-a", int64(7), 100}, args)
	assert.True(t, strings.Contains(query, `FROM "test_commits"`))
}

func TestEventsJSON(t *testing.T) {
	events := []pollingclient.Event{
		{Type: "Created", Data: []byte(`{"id":1}`), Metadata: map[string]string{"user": "u1"}},
		{Type: "Renamed", Data: []byte("raw bytes")},
	}

	data, err := marshalEvents(events)
	require.NoError(t, err)

	decoded, err := unmarshalEvents(data)
	require.NoError(t, err)
	assert.Equal(t, events, decoded)

	_, err = unmarshalEvents([]byte("{"))
	require.Error(t, err)
}

func TestUnmarshalHeaders(t *testing.T) {
	headers, err := unmarshalHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, headers)

	headers, err = unmarshalHeaders([]byte(`{"tenant":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tenant": "a"}, headers)
}
