package pollingclient

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// fetchFunc returns the next batch after the live checkpoint.
type fetchFunc func(ctx context.Context) ([]Commit, error)

// Client polls a CommitSource on a background goroutine and dispatches every
// commit to a Handler, tracking the checkpoint of the last handled commit.
type Client struct {
	source       CommitSource
	handler      Handler
	log          *zap.Logger
	metrics      Metrics
	name         string
	waitInterval time.Duration
	ctx          context.Context

	checkpoint    atomic.Int64
	stopRequested atomic.Bool
	disposed      atomic.Bool
	state         atomic.Int32
	guard         pollGuard

	mu       sync.Mutex
	fetch    fetchFunc
	bucketID string
	started  bool

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a client that is not started yet.
func New(source CommitSource, handler Handler, opts ...Option) (*Client, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	o := newOptions(opts...)

	return &Client{
		source:       source,
		handler:      applyMiddlewares(handler, o.mws),
		log:          o.log.With(zap.String("client", o.name)),
		metrics:      o.metrics,
		name:         o.name,
		waitInterval: o.waitInterval,
		ctx:          o.ctx,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Configure binds the fetch strategy: the global stream when bucketID is
// empty, otherwise the given bucket. Every fetch reads the live checkpoint.
// It is only valid before the client is started.
func (c *Client) Configure(bucketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkTransitionLocked(); err != nil {
		return configurationError(err, "cannot configure polling client")
	}
	c.configureLocked(bucketID)
	return nil
}

func (c *Client) configureLocked(bucketID string) {
	c.bucketID = bucketID
	if bucketID == "" {
		c.fetch = func(ctx context.Context) ([]Commit, error) {
			return c.source.GetFrom(ctx, c.checkpoint.Load())
		}
		return
	}
	c.fetch = func(ctx context.Context) ([]Commit, error) {
		return c.source.GetFromBucket(ctx, bucketID, c.checkpoint.Load())
	}
}

// StartFrom starts polling the global stream after checkpoint.
func (c *Client) StartFrom(checkpoint int64) error {
	return c.start("", checkpoint)
}

// StartFromBucket starts polling a single bucket after checkpoint.
func (c *Client) StartFromBucket(bucketID string, checkpoint int64) error {
	if bucketID == "" {
		return configurationError(errors.New("bucket id must not be empty"), "cannot start polling client")
	}
	return c.start(bucketID, checkpoint)
}

func (c *Client) start(bucketID string, checkpoint int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkTransitionLocked(); err != nil {
		return configurationError(err, "cannot start polling client")
	}

	c.checkpoint.Store(checkpoint)
	c.configureLocked(bucketID)
	c.started = true
	c.state.Store(int32(Running))

	c.log.Info("starting polling client",
		zap.Int64("checkpoint", checkpoint),
		zap.String("bucket_id", bucketID),
		zap.Duration("wait_interval", c.waitInterval),
	)

	go c.run()
	return nil
}

func (c *Client) checkTransitionLocked() error {
	switch RunState(c.state.Load()) {
	case NotStarted:
		return nil
	case Running:
		return ErrAlreadyStarted
	case Stopped:
		return ErrStopped
	default:
		return ErrDisposed
	}
}

// Stop asks the client to stop. The loop notices between commits or between
// cycles; a handler call already running is not interrupted. Stop does not
// wait for the loop to exit, use Wait for that. Calling it again is a no-op.
func (c *Client) Stop() {
	c.requestStop()

	c.mu.Lock()
	defer c.mu.Unlock()
	switch RunState(c.state.Load()) {
	case NotStarted, Running:
		c.state.Store(int32(Stopped))
	}
}

func (c *Client) requestStop() {
	c.stopRequested.Store(true)
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.log.Info("stop requested", zap.Int64("checkpoint", c.checkpoint.Load()))
	})
}

// Dispose stops the client and marks it unusable. It is safe to call from
// any state and more than once, and does not block.
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.requestStop()

	c.mu.Lock()
	c.state.Store(int32(Disposed))
	c.mu.Unlock()

	c.log.Info("disposed")
}

// Close implements io.Closer by disposing the client.
func (c *Client) Close() error {
	c.Dispose()
	return nil
}

// Checkpoint returns the token of the last commit the handler continued past.
func (c *Client) Checkpoint() int64 { return c.checkpoint.Load() }

func (c *Client) State() RunState { return RunState(c.state.Load()) }

// BucketID returns the configured bucket, empty for the global stream.
func (c *Client) BucketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bucketID
}

// Done is closed when the background loop exits. It is never closed for a
// client that was not started.
func (c *Client) Done() <-chan struct{} { return c.done }

// Wait blocks until the background loop exits or ctx is done. It returns
// immediately for a client that was never started.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) fetchStrategy() fetchFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetch
}
