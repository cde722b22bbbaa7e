package pollingclient

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type (
	// Handler processes one commit and decides how the client proceeds.
	// It must be idempotent: Retry, transient faults and restarts all
	// re-deliver commits. A non-nil error is treated as a transient fault:
	// the cycle ends and the commit is delivered again on the next one.
	Handler interface {
		Handle(ctx context.Context, c Commit) (HandlingResult, error)
	}
	HandlerFunc       func(ctx context.Context, c Commit) (HandlingResult, error)
	HandlerMiddleware func(next Handler) Handler
)

func (f HandlerFunc) Handle(ctx context.Context, c Commit) (HandlingResult, error) { return f(ctx, c) }

func applyMiddlewares(h Handler, middlewares []HandlerMiddleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewLogMiddleware logs every handler decision at debug level and every
// handler error at warn level.
func NewLogMiddleware(log *zap.Logger) HandlerMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, c Commit) (HandlingResult, error) {
			handleAt := time.Now()
			res, err := next.Handle(ctx, c)
			fields := []zap.Field{
				zap.Int64("checkpoint_token", c.CheckpointToken),
				zap.String("bucket_id", c.BucketID),
				zap.String("stream_id", c.StreamID),
				zap.String("commit_id", c.CommitID),
				zap.Duration("duration", time.Since(handleAt)),
			}
			if err != nil {
				log.Warn("handler failed", append(fields, zap.Error(err))...)
				return res, err
			}
			log.Debug("handled", append(fields, zap.Stringer("result", res))...)
			return res, nil
		})
	}
}
