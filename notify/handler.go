package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// sourcePipeline is the event bus source of pipeline state changes.
const sourcePipeline = "aws.codepipeline"

// Handler turns state-change events into status notifications.
type Handler struct {
	notifier Notifier
	states   map[string]struct{}
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewHandler returns a handler forwarding through the given notifier.
func NewHandler(notifier Notifier, opts ...Option) *Handler {
	o := applyOptions(opts)
	return &Handler{
		notifier: notifier,
		states:   o.states,
		logger:   o.logger,
		now:      o.now,
		newID:    o.newID,
	}
}

// Handle relays one state-change event. Events from other sources and
// states outside the configured set are dropped without error.
func (h *Handler) Handle(ctx context.Context, ev StateChangeEvent) error {
	if ev.Source != sourcePipeline {
		if h.logger != nil {
			h.logger.DebugContext(ctx, "ignoring event from unexpected source", "source", ev.Source)
		}
		return nil
	}
	if h.states != nil {
		if _, ok := h.states[ev.Detail.State]; !ok {
			return nil
		}
	}

	at := ev.Time
	if at.IsZero() {
		at = h.now()
	}

	status := StatusEvent{
		EventID:     h.newID(),
		Timestamp:   at.UTC().Format(time.RFC3339),
		Pipeline:    ev.Detail.Pipeline,
		ExecutionID: ev.Detail.ExecutionID,
		State:       ev.Detail.State,
		Summary: fmt.Sprintf("pipeline %s execution %s: %s",
			ev.Detail.Pipeline, ev.Detail.ExecutionID, ev.Detail.State),
	}
	return h.notifier.Notify(ctx, status)
}
