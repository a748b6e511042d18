// Package worker orchestrates one deployment job from receipt to report.
//
// The stage order is fixed: resolve configuration, resolve artifacts,
// dispatch to the backend, write the job summary, report the result.
// Everything before the report sits in a single failure boundary, and its
// outcome is routed to exactly one terminal report per job, success or
// failure, never both and never neither. The only error Run returns is a
// failed report call; that is the one fault with nowhere left to go but
// the invocation environment.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
	"github.com/trellisci/deploykit/deploy"
	"github.com/trellisci/deploykit/pipeline"
)

// Output variable names attached to success reports for downstream stages.
const (
	VarDeploymentStatus = "deploymentStatus"
	VarDeploymentTime   = "deploymentTime"
	VarDeployedVersion  = "deployedVersion"
)

// Status is a job's terminal outcome.
type Status string

const (
	// StatusSuccess means the deployment completed and success was
	// reported.
	StatusSuccess Status = "SUCCESS"

	// StatusFailed means the job failed and the failure was reported.
	StatusFailed Status = "FAILED"
)

// ArtifactStore resolves input artifacts and writes job outputs. The
// artifact package's Store is the production implementation.
type ArtifactStore interface {
	Resolve(ctx context.Context, refs []artifact.Ref) (artifact.Set, error)
	PutJSON(ctx context.Context, bucket, key string, v any) error
}

// Dispatcher routes a resolved deployment to its backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg *config.Deployment, artifacts artifact.Set) (*deploy.Result, error)
}

// Reporter delivers terminal job results to the control plane.
type Reporter interface {
	ReportSuccess(ctx context.Context, jobID string, vars map[string]string) error
	ReportFailure(ctx context.Context, jobID, message string) error
}

// Compile-time checks that the production implementations satisfy the
// worker's collaborator interfaces.
var (
	_ ArtifactStore = (*artifact.Store)(nil)
	_ Dispatcher    = (*deploy.Dispatcher)(nil)
	_ Reporter      = (*pipeline.Reporter)(nil)
)

// Summary is the JSON document written to each output artifact location on
// success.
type Summary struct {
	// Status is always "SUCCESS"; failed jobs write no summary.
	Status Status `json:"status"`

	// Timestamp is the completion time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	// Result describes what was deployed.
	Result *deploy.Result `json:"deploymentResult"`
}

// Outcome describes how a job ended. Status and Message reflect what was
// reported to the control plane; Result is set on success.
type Outcome struct {
	Status  Status
	Message string
	Result  *deploy.Result
}

// Worker runs deployment jobs. All collaborators are injected; the worker
// holds no ambient state beyond the environment configuration snapshot
// taken at construction.
type Worker struct {
	store      ArtifactStore
	dispatcher Dispatcher
	reporter   Reporter
	environ    map[string]string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger attaches a logger. Without one the worker is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithEnvironLayer replaces the environment configuration layer captured
// at construction. Mainly for tests; production workers read the process
// environment.
func WithEnvironLayer(environ map[string]string) Option {
	return func(w *Worker) {
		w.environ = environ
	}
}

// WithClock replaces the time source used for deployment timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New returns a worker over the given collaborators.
func New(store ArtifactStore, dispatcher Dispatcher, reporter Reporter, opts ...Option) *Worker {
	w := &Worker{
		store:      store,
		dispatcher: dispatcher,
		reporter:   reporter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.environ == nil {
		w.environ = config.EnvironLayer(os.Environ())
	}
	return w
}

// Run executes one job and reports its result.
//
// Any failure between receipt and report is converted to a failure report;
// a clean run ends in a success report carrying the output variables. The
// returned error is non-nil only when the report call itself failed. A job
// without an ID cannot be reported at all and is rejected outright.
func (w *Worker) Run(ctx context.Context, job Job) (*Outcome, error) {
	if job.ID == "" {
		return nil, errors.New("worker: job has no id")
	}

	if w.logger != nil {
		w.logger.InfoContext(ctx, "job received",
			"job_id", job.ID,
			"input_artifacts", len(job.InputArtifacts),
			"output_artifacts", len(job.OutputArtifacts),
		)
	}

	result, runErr := w.execute(ctx, job)
	if runErr != nil {
		outcome := &Outcome{Status: StatusFailed, Message: runErr.Error()}

		if w.logger != nil {
			w.logger.ErrorContext(ctx, "job failed",
				"job_id", job.ID,
				"error", runErr,
			)
		}

		if err := w.reporter.ReportFailure(ctx, job.ID, outcome.Message); err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	outcome := &Outcome{Status: StatusSuccess, Result: result}

	if err := w.reporter.ReportSuccess(ctx, job.ID, w.outputVariables(result)); err != nil {
		return outcome, err
	}

	if w.logger != nil {
		w.logger.InfoContext(ctx, "job completed",
			"job_id", job.ID,
			"deployed_version", result.DeployedVersion(),
		)
	}
	return outcome, nil
}

// execute is the single failure boundary covering everything before the
// report.
func (w *Worker) execute(ctx context.Context, job Job) (*deploy.Result, error) {
	cfg, err := config.Resolve(job.ActionConfiguration, w.environ)
	if err != nil {
		return nil, err
	}
	if w.logger != nil {
		w.logger.DebugContext(ctx, "configuration resolved",
			"deployment_type", cfg.Type().String(),
			"environment", cfg.Environment(),
		)
	}

	artifacts, err := w.store.Resolve(ctx, job.InputArtifacts)
	if err != nil {
		return nil, err
	}
	if w.logger != nil {
		w.logger.DebugContext(ctx, "artifacts resolved", "count", len(artifacts))
	}

	result, err := w.dispatcher.Dispatch(ctx, cfg, artifacts)
	if err != nil {
		return nil, err
	}

	if err := w.writeSummaries(ctx, job, result); err != nil {
		return nil, err
	}
	return result, nil
}

// writeSummaries writes the job summary to every declared output location.
// These writes sit on the critical path: the control plane treats output
// artifacts as part of the job's contract, so a failed write fails the
// job.
func (w *Worker) writeSummaries(ctx context.Context, job Job, result *deploy.Result) error {
	if len(job.OutputArtifacts) == 0 {
		return nil
	}

	summary := Summary{
		Status:    StatusSuccess,
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Result:    result,
	}
	for _, ref := range job.OutputArtifacts {
		if err := w.store.PutJSON(ctx, ref.Bucket, ref.Key, summary); err != nil {
			return err
		}
	}
	return nil
}

// outputVariables builds the success report's variables. All three keys
// are always present so downstream references to them never dangle, even
// when the backend reports no version.
func (w *Worker) outputVariables(result *deploy.Result) map[string]string {
	return map[string]string{
		VarDeploymentStatus: string(StatusSuccess),
		VarDeploymentTime:   w.now().UTC().Format(time.RFC3339),
		VarDeployedVersion:  result.DeployedVersion(),
	}
}
