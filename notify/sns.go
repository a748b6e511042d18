package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// maxSubject is the notification service's subject length limit.
const maxSubject = 100

// SNSAPI is the notification service surface the notifier depends on.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ SNSAPI = (*sns.Client)(nil)

// SNSNotifier publishes status events to one SNS topic as JSON.
type SNSNotifier struct {
	api      SNSAPI
	topicARN string
	logger   *slog.Logger
}

// NewSNSNotifier returns a notifier publishing to the given topic.
func NewSNSNotifier(api SNSAPI, topicARN string, opts ...Option) *SNSNotifier {
	o := applyOptions(opts)
	return &SNSNotifier{
		api:      api,
		topicARN: topicARN,
		logger:   o.logger,
	}
}

// Notify publishes the event. The message body is the event as JSON and
// the subject names the pipeline and state.
func (n *SNSNotifier) Notify(ctx context.Context, ev StatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode status event: %w", err)
	}

	out, err := n.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject(ev)),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("notify: publish to %s: %w", n.topicARN, err)
	}

	if n.logger != nil {
		n.logger.InfoContext(ctx, "published status event",
			"pipeline", ev.Pipeline,
			"state", ev.State,
			"message_id", aws.ToString(out.MessageId),
		)
	}
	return nil
}

func subject(ev StatusEvent) string {
	s := fmt.Sprintf("Pipeline %s: %s", ev.Pipeline, ev.State)
	if len(s) > maxSubject {
		s = s[:maxSubject]
	}
	return s
}
