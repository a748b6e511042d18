// notify-handler is the Lambda entrypoint relaying pipeline execution
// state changes to an SNS topic.
//
// NOTIFY_TOPIC_ARN names the topic and is required. NOTIFY_STATES is an
// optional comma-separated list limiting which states are relayed;
// unset relays every state.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/trellisci/deploykit/notify"
)

func newHandler(ctx context.Context) (*notify.Handler, error) {
	topic := os.Getenv("NOTIFY_TOPIC_ARN")
	if topic == "" {
		return nil, errors.New("NOTIFY_TOPIC_ARN is not set")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	opts := []notify.Option{notify.WithLogger(logger)}
	if states := os.Getenv("NOTIFY_STATES"); states != "" {
		opts = append(opts, notify.WithStates(splitStates(states)...))
	}

	notifier := notify.NewSNSNotifier(sns.NewFromConfig(cfg), topic, notify.WithLogger(logger))
	return notify.NewHandler(notifier, opts...), nil
}

func splitStates(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "notify-handler: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(h.Handle)
}
