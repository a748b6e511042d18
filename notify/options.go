package notify

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Option configures the package's constructors.
type Option func(*options)

type options struct {
	logger *slog.Logger
	states map[string]struct{}
	now    func() time.Time
	newID  func() string
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStates limits which execution states the handler relays. Without
// it every state is relayed. Only the handler consults this.
func WithStates(states ...string) Option {
	return func(o *options) {
		o.states = make(map[string]struct{}, len(states))
		for _, s := range states {
			o.states[s] = struct{}{}
		}
	}
}

// WithClock sets the time source used when an event carries no
// timestamp. Only the handler consults this; nil keeps the default.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
