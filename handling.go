package pollingclient

import "fmt"

// HandlingResult is the decision a Handler returns for one commit.
type HandlingResult int

const (
	// Continue advances the checkpoint to the commit and moves to the next one.
	Continue HandlingResult = iota
	// Retry ends the current cycle without advancing; the same commit is
	// delivered again on the next cycle.
	Retry
	// Stop ends the cycle without advancing and stops the client for good.
	Stop
)

func (r HandlingResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("HandlingResult(%d)", int(r))
	}
}
