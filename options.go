package pollingclient

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultWaitInterval is the idle delay between two poll cycles.
const DefaultWaitInterval = 100 * time.Millisecond

type options struct {
	waitInterval time.Duration
	log          *zap.Logger
	metrics      Metrics
	name         string
	mws          []HandlerMiddleware
	ctx          context.Context
}

// Option configures a Client.
type Option func(*options)

// WithWaitInterval sets the fixed delay applied after every poll cycle.
// Non-positive values keep the default.
func WithWaitInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitInterval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithName names the client in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMiddlewares wraps the handler; the first middleware is the outermost.
func WithMiddlewares(mws ...HandlerMiddleware) Option {
	return func(o *options) { o.mws = append(o.mws, mws...) }
}

// WithContext sets the context passed to the source and the handler.
// The client never cancels it: stopping is cooperative and in-flight calls
// run to completion.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func newOptions(opts ...Option) options {
	o := options{
		waitInterval: DefaultWaitInterval,
		log:          zap.NewNop(),
		metrics:      NopMetrics(),
		name:         "polling-client",
		ctx:          context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
