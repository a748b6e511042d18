package deploy

import (
	"log/slog"
	"time"
)

// DefaultWaitTimeout bounds how long the function backend waits for a code
// update to be applied before giving up.
const DefaultWaitTimeout = 5 * time.Minute

// Option configures a backend or dispatcher. Options that do not apply to
// the component being built are ignored.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	waitTimeout time.Duration
	waiter      FunctionWaiter
	now         func() time.Time
}

func defaultOptions() *options {
	return &options{
		waitTimeout: DefaultWaitTimeout,
		now:         time.Now,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger attaches a logger. Without one the component is silent, which
// also suppresses the function backend's best-effort warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWaitTimeout overrides the bound on waiting for a function update to
// apply. Values at or below zero are ignored.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithWaiter substitutes the waiter used by the function backend.
func WithWaiter(w FunctionWaiter) Option {
	return func(o *options) {
		o.waiter = w
	}
}

// WithClock replaces the time source used for deployment stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
