package pollingclient

import (
	"context"
	"sync"
)

type fetchCall struct {
	bucketID   string
	checkpoint int64
}

// fakeSource serves scripted commits and records every fetch.
type fakeSource struct {
	mu         sync.Mutex
	commits    []Commit
	fetchCalls []fetchCall
	failures   int // number of upcoming fetches that fail with fetchErr
	fetchErr   error
	panics     int // number of upcoming fetches that panic
}

func newFakeSource(tokens ...int64) *fakeSource {
	f := &fakeSource{}
	for _, tok := range tokens {
		f.commits = append(f.commits, Commit{
			BucketID:        DefaultBucketID,
			StreamID:        "stream-1",
			CheckpointToken: tok,
		})
	}
	return f
}

func (f *fakeSource) GetFrom(ctx context.Context, checkpoint int64) ([]Commit, error) {
	return f.get("", checkpoint)
}

func (f *fakeSource) GetFromBucket(ctx context.Context, bucketID string, checkpoint int64) ([]Commit, error) {
	return f.get(bucketID, checkpoint)
}

func (f *fakeSource) get(bucketID string, checkpoint int64) ([]Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls = append(f.fetchCalls, fetchCall{bucketID: bucketID, checkpoint: checkpoint})

	if f.panics > 0 {
		f.panics--
		panic("source exploded")
	}
	if f.failures > 0 {
		f.failures--
		return nil, f.fetchErr
	}

	var out []Commit
	for _, c := range f.commits {
		if c.CheckpointToken <= checkpoint {
			continue
		}
		if bucketID != "" && c.BucketID != bucketID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeSource) calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.fetchCalls...)
}

// recordingHandler records the tokens it sees and asks decide for a result.
type recordingHandler struct {
	mu     sync.Mutex
	seen   []int64
	decide func(call int, c Commit) (HandlingResult, error)
}

func (h *recordingHandler) Handle(ctx context.Context, c Commit) (HandlingResult, error) {
	h.mu.Lock()
	call := len(h.seen)
	h.seen = append(h.seen, c.CheckpointToken)
	decide := h.decide
	h.mu.Unlock()

	if decide == nil {
		return Continue, nil
	}
	return decide(call, c)
}

func (h *recordingHandler) tokens() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.seen...)
}

// decisions returns a decide func answering the given results in order,
// then Continue.
func decisions(results ...HandlingResult) func(int, Commit) (HandlingResult, error) {
	return func(call int, _ Commit) (HandlingResult, error) {
		if call < len(results) {
			return results[call], nil
		}
		return Continue, nil
	}
}

// staticSource returns the same batch for every fetch, ignoring the checkpoint.
type staticSource []Commit

func (s staticSource) GetFrom(context.Context, int64) ([]Commit, error) { return s, nil }

func (s staticSource) GetFromBucket(context.Context, string, int64) ([]Commit, error) {
	return s, nil
}
