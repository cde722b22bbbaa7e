package pollingclient

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestConcurrencyErrors(t *testing.T) {
	mismatch := errors.Wrap(&ErrVersionMismatch{
		BucketID:         DefaultBucketID,
		StreamID:         "orders-1",
		ExpectedRevision: 3,
		ActualRevision:   5,
	}, "append")
	assert.ErrorIs(t, mismatch, ErrConcurrencyConflict)
	assert.Equal(t, "append: expected revision 3 but stream 'default/orders-1' is at revision 5", mismatch.Error())

	var vm *ErrVersionMismatch
	assert.True(t, errors.As(mismatch, &vm))
	assert.Equal(t, int64(5), vm.ActualRevision)

	exists := &ErrStreamAlreadyExists{BucketID: "tenant", StreamID: "s", ActualRevision: 2}
	assert.ErrorIs(t, exists, ErrConcurrencyConflict)
	assert.Equal(t, "expected new stream 'tenant/s' (revision 0) but stream already exists at revision 2", exists.Error())

	assert.NotErrorIs(t, errors.New("boom"), ErrConcurrencyConflict)
}

func TestHandlingResult_String(t *testing.T) {
	tests := []struct {
		result   HandlingResult
		expected string
	}{
		{Continue, "continue"},
		{Retry, "retry"},
		{Stop, "stop"},
		{HandlingResult(42), "HandlingResult(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.result.String())
	}
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "disposed", Disposed.String())
}

func TestConfigurationErrors(t *testing.T) {
	err := configurationError(ErrStopped, "cannot start")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.ErrorIs(t, err, ErrStopped)
	assert.NotErrorIs(t, err, ErrAlreadyStarted)
	assert.NotErrorIs(t, err, ErrDisposed)
	assert.Equal(t, "cannot start: polling client stopped", err.Error())
}
