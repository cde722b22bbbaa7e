package pollingclient

import "github.com/cockroachdb/errors"

var (
	// ErrConfiguration marks every invalid lifecycle transition. It is fatal
	// to the call that returned it, never to the client:
	//
	//	if errors.Is(err, pollingclient.ErrConfiguration) { ... }
	ErrConfiguration = errors.New("polling client configuration error")

	// ErrAlreadyStarted is returned when configuring or starting a running client.
	ErrAlreadyStarted = errors.New("polling client already started")

	// ErrStopped is returned when configuring or starting a stopped client.
	// A stopped client cannot be restarted; create a new one from the last checkpoint.
	ErrStopped = errors.New("polling client stopped")

	// ErrDisposed is returned when configuring or starting a disposed client.
	ErrDisposed = errors.New("polling client disposed")

	ErrNilSource  = errors.New("commit source cannot be nil")
	ErrNilHandler = errors.New("cannot use polling client without handler")
)

// configurationError wraps err with msg and marks it as ErrConfiguration.
func configurationError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrConfiguration)
}
