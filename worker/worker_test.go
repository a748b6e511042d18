package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
	"github.com/trellisci/deploykit/deploy"
	"github.com/trellisci/deploykit/internal/testutil"
	"github.com/trellisci/deploykit/pipeline"
)

type putJSONCall struct {
	bucket string
	key    string
	value  any
}

type mockStore struct {
	resolveCalls int
	resolveSet   artifact.Set
	resolveErr   error
	putCalls     []putJSONCall
	putErr       error
}

func (m *mockStore) Resolve(ctx context.Context, refs []artifact.Ref) (artifact.Set, error) {
	m.resolveCalls++
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	if m.resolveSet != nil {
		return m.resolveSet, nil
	}
	return artifact.Set{}, nil
}

func (m *mockStore) PutJSON(ctx context.Context, bucket, key string, v any) error {
	m.putCalls = append(m.putCalls, putJSONCall{bucket: bucket, key: key, value: v})
	return m.putErr
}

type mockDispatcher struct {
	calls  int
	result *deploy.Result
	err    error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, cfg *config.Deployment, set artifact.Set) (*deploy.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &deploy.Result{Kind: cfg.Type()}, nil
}

type mockReporter struct {
	successCalls int
	failureCalls int
	lastVars     map[string]string
	lastMessage  string
	successErr   error
	failureErr   error
}

func (m *mockReporter) ReportSuccess(ctx context.Context, jobID string, vars map[string]string) error {
	m.successCalls++
	m.lastVars = vars
	return m.successErr
}

func (m *mockReporter) ReportFailure(ctx context.Context, jobID, message string) error {
	m.failureCalls++
	m.lastMessage = message
	return m.failureErr
}

func testJob() Job {
	return Job{
		ID: "job-1",
		ActionConfiguration: map[string]string{
			config.KeyDeploymentType: "function-update",
			config.KeyTargetFunction: "fn-1",
		},
		InputArtifacts: []artifact.Ref{
			{Name: "BuildArtifact", Bucket: "artifacts", Key: "run-1/build.zip"},
		},
		OutputArtifacts: []artifact.Ref{
			{Name: "DeployOutput", Bucket: "artifacts", Key: "run-1/summary.json"},
		},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	}
}

func TestWorker_Run_ExactlyOneReport(t *testing.T) {
	tests := []struct {
		name           string
		action         map[string]string
		resolveErr     error
		dispatchErr    error
		putErr         error
		wantStatus     Status
		wantMessage    string
		wantResolves   int
		wantDispatches int
	}{
		{
			name: "configuration validation failure",
			action: map[string]string{
				config.KeyDeploymentType: "carrier-pigeon",
			},
			wantStatus:     StatusFailed,
			wantMessage:    "carrier-pigeon",
			wantResolves:   0,
			wantDispatches: 0,
		},
		{
			name: "artifact resolution failure",
			resolveErr: &artifact.Error{
				Op: "get", Name: "BuildArtifact", Bucket: "artifacts", Key: "run-1/build.zip",
				Err: artifact.ErrObjectNotFound,
			},
			wantStatus:     StatusFailed,
			wantMessage:    "BuildArtifact",
			wantResolves:   1,
			wantDispatches: 0,
		},
		{
			name: "dispatch failure",
			dispatchErr: &deploy.Error{
				Backend: config.TypeFunctionUpdate, Op: "update-code",
				Err: errors.New("function not found"),
			},
			wantStatus:     StatusFailed,
			wantMessage:    "function not found",
			wantResolves:   1,
			wantDispatches: 1,
		},
		{
			name: "summary write failure",
			putErr: &artifact.Error{
				Op: "put", Bucket: "artifacts", Key: "run-1/summary.json",
				Err: artifact.ErrAccessDenied,
			},
			wantStatus:     StatusFailed,
			wantMessage:    "access denied",
			wantResolves:   1,
			wantDispatches: 1,
		},
		{
			name:           "success",
			wantStatus:     StatusSuccess,
			wantResolves:   1,
			wantDispatches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{resolveErr: tt.resolveErr, putErr: tt.putErr}
			dispatcher := &mockDispatcher{err: tt.dispatchErr}
			reporter := &mockReporter{}

			job := testJob()
			if tt.action != nil {
				job.ActionConfiguration = tt.action
			}

			w := New(store, dispatcher, reporter,
				WithEnvironLayer(map[string]string{}),
				WithClock(fixedClock()),
			)

			outcome, err := w.Run(context.Background(), job)
			require.NoError(t, err)
			require.NotNil(t, outcome)

			assert.Equal(t, 1, reporter.successCalls+reporter.failureCalls,
				"every job gets exactly one terminal report")
			assert.Equal(t, tt.wantStatus, outcome.Status)
			if tt.wantStatus == StatusFailed {
				assert.Equal(t, 1, reporter.failureCalls)
				assert.Contains(t, reporter.lastMessage, tt.wantMessage)
			} else {
				assert.Equal(t, 1, reporter.successCalls)
			}

			assert.Equal(t, tt.wantResolves, store.resolveCalls,
				"configuration failures reject the job before any artifact fetch")
			assert.Equal(t, tt.wantDispatches, dispatcher.calls)
		})
	}
}

func TestWorker_Run_OutputVariables(t *testing.T) {
	tests := []struct {
		name        string
		result      *deploy.Result
		wantVersion string
	}{
		{
			name: "function version",
			result: &deploy.Result{
				Kind:     config.TypeFunctionUpdate,
				Function: &deploy.FunctionResult{Version: "7"},
			},
			wantVersion: "7",
		},
		{
			name:        "missing version stays present but empty",
			result:      &deploy.Result{Kind: config.TypeFunctionUpdate},
			wantVersion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reporter := &mockReporter{}

			w := New(&mockStore{}, &mockDispatcher{result: tt.result}, reporter,
				WithEnvironLayer(map[string]string{}),
				WithClock(fixedClock()),
			)

			_, err := w.Run(context.Background(), testJob())
			require.NoError(t, err)

			assert.Equal(t, map[string]string{
				VarDeploymentStatus: "SUCCESS",
				VarDeploymentTime:   "2026-08-24T12:00:00Z",
				VarDeployedVersion:  tt.wantVersion,
			}, reporter.lastVars, "all three output variables are always set")
		})
	}
}

func TestWorker_Run_WritesSummaries(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{
		result: &deploy.Result{
			Kind:   config.TypeStaticArtifact,
			Static: &deploy.StaticResult{Bucket: "static-site", Key: "deployments/x/BuildArtifact", ETag: "e1"},
		},
	}
	reporter := &mockReporter{}

	job := testJob()
	job.OutputArtifacts = []artifact.Ref{
		{Name: "DeployOutput", Bucket: "artifacts", Key: "run-1/a"},
		{Name: "AuditCopy", Bucket: "audit", Key: "run-1/b"},
	}

	w := New(store, dispatcher, reporter,
		WithEnvironLayer(map[string]string{}),
		WithClock(fixedClock()),
	)

	_, err := w.Run(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, store.putCalls, 2, "every output location gets the summary")
	assert.Equal(t, "artifacts", store.putCalls[0].bucket)
	assert.Equal(t, "audit", store.putCalls[1].bucket)

	summary, ok := store.putCalls[0].value.(Summary)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, summary.Status)
	assert.Equal(t, "2026-08-24T12:00:00Z", summary.Timestamp)
	assert.Equal(t, dispatcher.result, summary.Result)
}

func TestWorker_Run_NoOutputArtifacts(t *testing.T) {
	store := &mockStore{}
	reporter := &mockReporter{}

	job := testJob()
	job.OutputArtifacts = nil

	w := New(store, &mockDispatcher{}, reporter, WithEnvironLayer(map[string]string{}))

	_, err := w.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, store.putCalls)
	assert.Equal(t, 1, reporter.successCalls)
}

func TestWorker_Run_ReportFaultsPropagate(t *testing.T) {
	t.Run("success report failure", func(t *testing.T) {
		reporter := &mockReporter{
			successErr: &pipeline.ReportError{JobID: "job-1", Op: "success", Err: errors.New("throttled")},
		}

		w := New(&mockStore{}, &mockDispatcher{}, reporter, WithEnvironLayer(map[string]string{}))

		outcome, err := w.Run(context.Background(), testJob())
		require.Error(t, err)

		var rerr *pipeline.ReportError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, StatusSuccess, outcome.Status, "the deployment itself succeeded")
		assert.Equal(t, 1, reporter.successCalls)
		assert.Zero(t, reporter.failureCalls, "a failed success report is never retried as a failure report")
	})

	t.Run("failure report failure", func(t *testing.T) {
		reporter := &mockReporter{
			failureErr: &pipeline.ReportError{JobID: "job-1", Op: "failure", Err: errors.New("throttled")},
		}
		dispatcher := &mockDispatcher{err: errors.New("boom")}

		w := New(&mockStore{}, dispatcher, reporter, WithEnvironLayer(map[string]string{}))

		outcome, err := w.Run(context.Background(), testJob())
		require.Error(t, err)
		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Equal(t, 1, reporter.failureCalls)
		assert.Zero(t, reporter.successCalls)
	})
}

func TestWorker_Run_RejectsJobWithoutID(t *testing.T) {
	store := &mockStore{}
	reporter := &mockReporter{}

	w := New(store, &mockDispatcher{}, reporter, WithEnvironLayer(map[string]string{}))

	job := testJob()
	job.ID = ""

	_, err := w.Run(context.Background(), job)
	require.Error(t, err)
	assert.Zero(t, store.resolveCalls)
	assert.Zero(t, reporter.successCalls+reporter.failureCalls)
}

// fakeFunctionAPI and friends wire the real backend stack for the
// end-to-end flows.
type fakeFunctionAPI struct {
	updateCalls int
	updateInput *lambda.UpdateFunctionCodeInput
	updateErr   error
	stampCalls  int
}

func (f *fakeFunctionAPI) UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	f.updateCalls++
	f.updateInput = params
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &lambda.UpdateFunctionCodeOutput{
		FunctionArn: aws.String("arn:aws:lambda:us-east-1:123456789012:function:fn-1"),
		Version:     aws.String("7"),
	}, nil
}

func (f *fakeFunctionAPI) UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.stampCalls++
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (f *fakeFunctionAPI) GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error) {
	return &lambda.GetFunctionConfigurationOutput{}, nil
}

type fakeWaiter struct {
	calls int
}

func (f *fakeWaiter) Wait(ctx context.Context, params *lambda.GetFunctionConfigurationInput, _ time.Duration, _ ...func(*lambda.FunctionUpdatedWaiterOptions)) error {
	f.calls++
	return nil
}

type fakePipelineAPI struct {
	successCalls int
	successInput *codepipeline.PutJobSuccessResultInput
	failureCalls int
	failureInput *codepipeline.PutJobFailureResultInput
}

func (f *fakePipelineAPI) PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	f.successCalls++
	f.successInput = params
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

func (f *fakePipelineAPI) PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	f.failureCalls++
	f.failureInput = params
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

// endToEndFixture assembles the real resolver, backends, and reporter
// over faked service clients.
type endToEndFixture struct {
	s3Gets    map[string]int
	s3Puts    map[string][]byte
	functions *fakeFunctionAPI
	waiter    *fakeWaiter
	control   *fakePipelineAPI
	worker    *Worker
}

func newEndToEndFixture(t *testing.T) *endToEndFixture {
	t.Helper()

	f := &endToEndFixture{
		s3Gets:    make(map[string]int),
		s3Puts:    make(map[string][]byte),
		functions: &fakeFunctionAPI{},
		waiter:    &fakeWaiter{},
		control:   &fakePipelineAPI{},
	}

	s3Mock := &testutil.MockS3Client{
		GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			loc := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
			f.s3Gets[loc]++
			return &s3.GetObjectOutput{
				Body:        io.NopCloser(bytes.NewReader([]byte("zip-bytes"))),
				ContentType: aws.String("application/zip"),
				ETag:        aws.String(`"e1"`),
			}, nil
		},
		PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			body, err := io.ReadAll(params.Body)
			require.NoError(t, err)
			f.s3Puts[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = body
			return &s3.PutObjectOutput{ETag: aws.String(`"e2"`)}, nil
		},
	}

	store := artifact.NewStore(s3Mock)
	dispatcher := deploy.NewDispatcher(
		deploy.NewFunctionBackend(f.functions, deploy.WithWaiter(f.waiter)),
		deploy.NewServiceBackend(&unusedServiceAPI{}),
		deploy.NewStaticBackend(store),
	)
	reporter := pipeline.NewReporter(f.control)

	f.worker = New(store, dispatcher, reporter,
		WithEnvironLayer(map[string]string{}),
		WithClock(fixedClock()),
	)
	return f
}

type unusedServiceAPI struct{}

func (u *unusedServiceAPI) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, _ ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	return nil, errors.New("unexpected call to ecs")
}

func TestWorker_Run_EndToEndSuccess(t *testing.T) {
	f := newEndToEndFixture(t)

	outcome, err := f.worker.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)

	assert.Equal(t, 1, f.s3Gets["artifacts/run-1/build.zip"], "exactly one fetch of the input artifact")
	assert.Equal(t, 1, f.functions.updateCalls, "exactly one code update")
	assert.Equal(t, []byte("zip-bytes"), f.functions.updateInput.ZipFile)
	assert.Equal(t, 1, f.waiter.calls, "exactly one wait for the update to apply")

	assert.Equal(t, 1, f.control.successCalls)
	assert.Zero(t, f.control.failureCalls)
	vars := f.control.successInput.OutputVariables
	assert.Equal(t, "SUCCESS", vars[VarDeploymentStatus])
	assert.Equal(t, "7", vars[VarDeployedVersion])

	summary, ok := f.s3Puts["artifacts/run-1/summary.json"]
	require.True(t, ok, "the job summary is written to the output artifact location")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(summary, &decoded))
	assert.Equal(t, "SUCCESS", decoded["status"])
	assert.NotNil(t, decoded["deploymentResult"])
}

func TestWorker_Run_EndToEndFailure(t *testing.T) {
	f := newEndToEndFixture(t)
	f.functions.updateErr = &smithy.GenericAPIError{
		Code:    "ResourceConflictException",
		Message: "another update is in progress",
	}

	outcome, err := f.worker.Run(context.Background(), testJob())
	require.NoError(t, err, "a reported job failure is not an invocation error")
	assert.Equal(t, StatusFailed, outcome.Status)

	assert.Equal(t, 1, f.control.failureCalls)
	assert.Zero(t, f.control.successCalls)
	message := aws.ToString(f.control.failureInput.FailureDetails.Message)
	assert.Contains(t, message, "ResourceConflictException")
	assert.Contains(t, message, "another update is in progress")

	assert.Zero(t, f.waiter.calls, "a failed update is never waited on")
	assert.Empty(t, f.s3Puts, "failed jobs write no summary")
}

func TestWorker_Run_EndToEndMissingArtifact(t *testing.T) {
	f := newEndToEndFixture(t)

	job := testJob()
	job.InputArtifacts = nil

	outcome, err := f.worker.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)

	assert.Equal(t, 1, f.control.failureCalls)
	assert.Zero(t, f.control.successCalls)
	assert.Contains(t, aws.ToString(f.control.failureInput.FailureDetails.Message), "required artifact not present")
	assert.Zero(t, f.functions.updateCalls, "no update without an artifact")
}
