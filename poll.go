package pollingclient

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// PollOnce runs a single poll cycle on the calling goroutine and reports
// whether the outer loop should stop.
//
// If another cycle is in flight it returns false at once without fetching.
// Fetch and handler faults never escape: they are logged, the checkpoint is
// left where it was and false is returned so the next cycle retries.
func (c *Client) PollOnce() bool {
	if c.stopRequested.Load() {
		return true
	}

	release, ok := c.guard.tryAcquire()
	if !ok {
		c.metrics.PollSkipped()
		return false
	}
	defer release()

	fetch := c.fetchStrategy()
	if fetch == nil {
		c.log.Debug("poll skipped, fetch strategy not configured")
		return false
	}

	defer c.metrics.PollDuration().ObserveDuration()

	shouldStop, err := c.poll(fetch)
	if err != nil {
		c.metrics.PollFailed()
		c.log.Error("error during polling client",
			zap.Error(err),
			zap.Int64("checkpoint", c.checkpoint.Load()),
			zap.String("bucket_id", c.BucketID()),
		)
		return false
	}
	return shouldStop
}

// PollNow triggers one poll cycle on its own goroutine, independent of the
// loop timer and subject to the same single-cycle guard. The returned channel
// receives the PollOnce result and is then closed.
//
// On a stopped or disposed client nothing is polled and true is delivered.
func (c *Client) PollNow() <-chan bool {
	result := make(chan bool, 1)
	if c.stopRequested.Load() {
		result <- true
		close(result)
		return result
	}

	go func() {
		defer close(result)
		result <- c.PollOnce()
	}()
	return result
}

func (c *Client) poll(fetch fetchFunc) (shouldStop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			shouldStop = false
			err = errors.Newf("recovered from panic: %v", r)
		}
	}()

	commits, err := fetch(c.ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to fetch commits")
	}

	for _, commit := range commits {
		if c.stopRequested.Load() {
			return true, nil
		}

		res, err := c.handler.Handle(c.ctx, commit)
		if err != nil {
			return false, errors.Wrapf(err, "failed to handle commit %d", commit.CheckpointToken)
		}
		c.metrics.CommitHandled(res)

		switch res {
		case Continue:
			c.advance(commit.CheckpointToken)
		case Retry:
			c.log.Debug("retry requested", zap.Int64("checkpoint_token", commit.CheckpointToken))
			return false, nil
		case Stop:
			c.log.Info("stop requested by handler", zap.Int64("checkpoint_token", commit.CheckpointToken))
			c.Stop()
			return true, nil
		default:
			return false, errors.Newf("unknown handling result %d for commit %d", int(res), commit.CheckpointToken)
		}
	}

	return false, nil
}

// advance moves the checkpoint forward to token; it never moves it back.
func (c *Client) advance(token int64) {
	for {
		cur := c.checkpoint.Load()
		if token <= cur {
			return
		}
		if c.checkpoint.CompareAndSwap(cur, token) {
			c.metrics.CheckpointAdvanced(token)
			return
		}
	}
}
