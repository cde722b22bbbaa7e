package pollingclient

import (
	"time"

	"go.uber.org/zap"
)

// run is the background loop: poll, then wait the fixed interval, until a
// stop is requested or a cycle reports that the client must stop.
func (c *Client) run() {
	defer func() {
		c.mu.Lock()
		if RunState(c.state.Load()) == Running {
			c.state.Store(int32(Stopped))
		}
		c.mu.Unlock()

		c.log.Info("polling loop exited", zap.Int64("checkpoint", c.checkpoint.Load()))
		close(c.done)
	}()

	for !c.stopRequested.Load() {
		if c.PollOnce() {
			return
		}

		timer := time.NewTimer(c.waitInterval)
		select {
		case <-c.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
