// Package checkpoint persists the checkpoint token of a polling client so a
// restarted process can resume with StartFrom where the previous one stopped.
package checkpoint

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	pollingclient "github.com/shogotsuneto/go-simple-pollingclient"
)

// ErrNotFound is returned by Store.Load when nothing was saved under a name yet.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists checkpoint tokens keyed by consumer name.
type Store interface {
	Load(ctx context.Context, name string) (int64, error)
	Save(ctx context.Context, name string, token int64) error
}

// Resume loads the token saved under name. A missing checkpoint resumes from 0.
func Resume(ctx context.Context, store Store, name string) (int64, error) {
	token, err := store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to load checkpoint %q", name)
	}
	return token, nil
}

// Middleware saves the token of every commit the wrapped handler accepted
// with Continue. A failed save is returned as a handler error, so the client
// keeps its cursor and delivers the commit again on the next cycle.
func Middleware(store Store, name string) pollingclient.HandlerMiddleware {
	return func(next pollingclient.Handler) pollingclient.Handler {
		return pollingclient.HandlerFunc(func(ctx context.Context, c pollingclient.Commit) (pollingclient.HandlingResult, error) {
			res, err := next.Handle(ctx, c)
			if err != nil || res != pollingclient.Continue {
				return res, err
			}
			if err := store.Save(ctx, name, c.CheckpointToken); err != nil {
				return res, errors.Wrapf(err, "failed to save checkpoint %d", c.CheckpointToken)
			}
			return res, nil
		})
	}
}

// InMemoryStore keeps checkpoints in a map. Saved tokens never move backwards.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]int64
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: map[string]int64{}}
}

func (s *InMemoryStore) Load(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[name]
	if !ok {
		return 0, ErrNotFound
	}
	return token, nil
}

func (s *InMemoryStore) Save(_ context.Context, name string, token int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tokens[name]; ok && token <= cur {
		return nil
	}
	s.tokens[name] = token
	return nil
}
