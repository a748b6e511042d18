// deploy-handler is the Lambda entrypoint for pipeline deployment jobs.
//
// It receives job events from the pipeline control plane, runs the
// deployment worker, and reports the outcome back. A reported job
// failure ends the invocation normally; only a failed report call
// surfaces as an invocation error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/deploy"
	"github.com/trellisci/deploykit/event"
	"github.com/trellisci/deploykit/pipeline"
	"github.com/trellisci/deploykit/worker"
)

// handler holds the clients built once per cold start.
type handler struct {
	logger    *slog.Logger
	region    string
	functions *lambdasvc.Client
	services  *ecs.Client
	objects   *s3.Client
	control   *codepipeline.Client
}

func newHandler(ctx context.Context) (*handler, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &handler{
		logger:    slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		region:    cfg.Region,
		functions: lambdasvc.NewFromConfig(cfg),
		services:  ecs.NewFromConfig(cfg),
		objects:   s3.NewFromConfig(cfg),
		control:   codepipeline.NewFromConfig(cfg),
	}, nil
}

// store returns the artifact store for one job. Jobs usually carry
// scoped credentials for their artifact buckets; without them the
// handler's own role is used.
func (h *handler) store(ctx context.Context, creds *event.Credentials) (*artifact.Store, error) {
	if creds == nil {
		return artifact.NewStore(h.objects, artifact.WithLogger(h.logger)), nil
	}
	return artifact.NewStoreWithCredentials(ctx, h.region,
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
		artifact.WithLogger(h.logger),
	)
}

func (h *handler) handle(ctx context.Context, e event.JobEvent) error {
	job := e.Job.WorkerJob()
	h.logger.InfoContext(ctx, "received job", "job_id", job.ID, "account_id", e.Job.AccountID)

	store, err := h.store(ctx, e.Job.Data.ArtifactCredentials)
	if err != nil {
		return fmt.Errorf("build artifact store: %w", err)
	}

	dispatcher := deploy.NewDispatcher(
		deploy.NewFunctionBackend(h.functions, deploy.WithLogger(h.logger)),
		deploy.NewServiceBackend(h.services, deploy.WithLogger(h.logger)),
		deploy.NewStaticBackend(store, deploy.WithLogger(h.logger)),
		deploy.WithLogger(h.logger),
	)
	reporter := pipeline.NewReporter(h.control, pipeline.WithLogger(h.logger))

	w := worker.New(store, dispatcher, reporter, worker.WithLogger(h.logger))
	_, err = w.Run(ctx, job)
	return err
}

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploy-handler: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(h.handle)
}
