package pollingclient

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}

// Metrics defines the instrumentation hooks of a Client. Implementations
// must be thread-safe: the loop and PollNow report concurrently.
type Metrics interface {
	// PollDuration times one poll cycle that acquired the guard.
	PollDuration() Timer
	// PollSkipped counts poll attempts that found another cycle in flight.
	PollSkipped()
	// PollFailed counts cycles ended by a transient fetch or handler fault.
	PollFailed()
	// CommitHandled counts handler decisions.
	CommitHandled(result HandlingResult)
	// CheckpointAdvanced reports the new checkpoint token.
	CheckpointAdvanced(token int64)
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return nopTimer{} }

type nopMetrics struct{}

func (nopMetrics) PollDuration() Timer          { return nopTimer{} }
func (nopMetrics) PollSkipped()                 {}
func (nopMetrics) PollFailed()                  {}
func (nopMetrics) CommitHandled(HandlingResult) {}
func (nopMetrics) CheckpointAdvanced(int64)     {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
