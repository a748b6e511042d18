// deploykit runs one deployment job from a local job event file. It is
// the local stand-in for the Lambda handler during development and
// incident debugging.
//
// Usage:
//
//	deploykit -job job.json [-env-file .env]
//
// The job file holds a job event, with or without the control plane's
// envelope. The env file is loaded into the process environment before
// any client is built, so it can carry both AWS credentials and the
// environment configuration layer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/deploy"
	"github.com/trellisci/deploykit/event"
	"github.com/trellisci/deploykit/pipeline"
	"github.com/trellisci/deploykit/worker"
)

func main() {
	jobPath := flag.String("job", "", "path to a job event JSON file")
	envFile := flag.String("env-file", "", "env file loaded before clients are built")
	flag.Parse()

	if *jobPath == "" {
		fmt.Fprintln(os.Stderr, "deploykit: -job is required")
		flag.Usage()
		os.Exit(2)
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "deploykit: load %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	outcome, err := run(context.Background(), *jobPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploykit: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		fmt.Fprintf(os.Stderr, "deploykit: encode outcome: %v\n", err)
		os.Exit(1)
	}
	if outcome.Status != worker.StatusSuccess {
		os.Exit(1)
	}
}

func run(ctx context.Context, jobPath string) (*worker.Outcome, error) {
	raw, err := os.ReadFile(jobPath)
	if err != nil {
		return nil, err
	}
	job, creds, err := decodeJob(raw)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var store *artifact.Store
	if creds != nil {
		store, err = artifact.NewStoreWithCredentials(ctx, cfg.Region,
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
			artifact.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("build artifact store: %w", err)
		}
	} else {
		store = artifact.NewStore(s3.NewFromConfig(cfg), artifact.WithLogger(logger))
	}

	dispatcher := deploy.NewDispatcher(
		deploy.NewFunctionBackend(lambdasvc.NewFromConfig(cfg), deploy.WithLogger(logger)),
		deploy.NewServiceBackend(ecs.NewFromConfig(cfg), deploy.WithLogger(logger)),
		deploy.NewStaticBackend(store, deploy.WithLogger(logger)),
		deploy.WithLogger(logger),
	)
	reporter := pipeline.NewReporter(codepipeline.NewFromConfig(cfg), pipeline.WithLogger(logger))

	w := worker.New(store, dispatcher, reporter, worker.WithLogger(logger))
	return w.Run(ctx, job)
}

// decodeJob accepts either an enveloped job event or a bare job
// document.
func decodeJob(raw []byte) (worker.Job, *event.Credentials, error) {
	var envelope event.JobEvent
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return worker.Job{}, nil, fmt.Errorf("decode job event: %w", err)
	}

	j := envelope.Job
	if j.ID == "" {
		if err := json.Unmarshal(raw, &j); err != nil || j.ID == "" {
			return worker.Job{}, nil, errors.New("job document has no job id")
		}
	}
	return j.WorkerJob(), j.Data.ArtifactCredentials, nil
}
