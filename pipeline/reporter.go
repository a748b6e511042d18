// Package pipeline reports job results back to the pipeline control plane.
//
// The reporter is deliberately thin: one control plane call per report,
// input validation, and failure classification. The exactly-once report
// discipline lives in the worker package, which owns the job lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/aws/smithy-go"
)

// maxFailureMessage is the control plane's limit on failure detail messages.
const maxFailureMessage = 5000

// PipelineAPI is the subset of the control plane client the reporter uses.
type PipelineAPI interface {
	PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// Compile-time check that the SDK client satisfies the interface.
var _ PipelineAPI = (*codepipeline.Client)(nil)

// ReportError wraps a failed report call. A report failure is the one fault
// the worker cannot route anywhere: the job's outcome is already decided
// and only the invocation environment can observe the problem.
type ReportError struct {
	// JobID is the job whose report failed.
	JobID string

	// Op is "success" or "failure", naming the report that was attempted.
	Op string

	// Err is the underlying cause.
	Err error
}

// Error returns the error message with the job context.
func (e *ReportError) Error() string {
	return fmt.Sprintf("pipeline: report %s for job %s: %v", e.Op, e.JobID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReportError) Unwrap() error {
	return e.Err
}

// Reporter reports terminal job results to the control plane.
type Reporter struct {
	api    PipelineAPI
	logger *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger attaches a logger. Without one the reporter is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter returns a reporter over the given control plane client.
func NewReporter(api PipelineAPI, opts ...Option) *Reporter {
	r := &Reporter{api: api}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReportSuccess signals the job succeeded, attaching the output variables
// downstream pipeline stages can reference.
func (r *Reporter) ReportSuccess(ctx context.Context, jobID string, vars map[string]string) error {
	if jobID == "" {
		return &ReportError{Op: "success", Err: errors.New("job id is required")}
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "reporting job success",
			"job_id", jobID,
			"output_variables", len(vars),
		)
	}

	input := &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(jobID),
		ExecutionDetails: &types.ExecutionDetails{
			Summary:         aws.String("deployment succeeded"),
			PercentComplete: aws.Int32(100),
		},
	}
	if len(vars) > 0 {
		input.OutputVariables = vars
	}

	if _, err := r.api.PutJobSuccessResult(ctx, input); err != nil {
		rerr := &ReportError{JobID: jobID, Op: "success", Err: apiFault(err)}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "success report failed", "job_id", jobID, "error", rerr)
		}
		return rerr
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job success reported", "job_id", jobID)
	}
	return nil
}

// ReportFailure signals the job failed, carrying a human-readable message.
// Messages beyond the control plane's limit are truncated.
func (r *Reporter) ReportFailure(ctx context.Context, jobID, message string) error {
	if jobID == "" {
		return &ReportError{Op: "failure", Err: errors.New("job id is required")}
	}
	if message == "" {
		message = "deployment failed"
	}
	message = truncateMessage(message)

	if r.logger != nil {
		r.logger.InfoContext(ctx, "reporting job failure",
			"job_id", jobID,
			"message", message,
		)
	}

	input := &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(jobID),
		FailureDetails: &types.FailureDetails{
			Message: aws.String(message),
			Type:    types.FailureTypeJobFailed,
		},
	}

	if _, err := r.api.PutJobFailureResult(ctx, input); err != nil {
		rerr := &ReportError{JobID: jobID, Op: "failure", Err: apiFault(err)}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "failure report failed", "job_id", jobID, "error", rerr)
		}
		return rerr
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job failure reported", "job_id", jobID)
	}
	return nil
}

// truncateMessage cuts the message to the control plane limit, keeping it
// valid UTF-8 and marking the cut.
func truncateMessage(s string) string {
	if len(s) <= maxFailureMessage {
		return s
	}
	return strings.ToValidUTF8(s[:maxFailureMessage-3], "") + "..."
}

// apiFault surfaces the control plane error code when available.
func apiFault(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err
}
