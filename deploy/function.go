package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
)

// Function environment variables stamped onto non-production targets after
// a successful code update.
const (
	envDeployedAt = "DEPLOYED_AT"
	envDeployEnv  = "DEPLOY_ENV"
)

// FunctionBackend deploys a code bundle to a serverless function: push the
// bundle, wait until the update is applied, then stamp deployment metadata
// onto non-production targets.
type FunctionBackend struct {
	api         FunctionAPI
	waiter      FunctionWaiter
	waitTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewFunctionBackend returns a function backend over the given control API.
func NewFunctionBackend(api FunctionAPI, opts ...Option) *FunctionBackend {
	o := applyOptions(opts)

	waiter := o.waiter
	if waiter == nil {
		waiter = lambda.NewFunctionUpdatedWaiter(api)
	}

	return &FunctionBackend{
		api:         api,
		waiter:      waiter,
		waitTimeout: o.waitTimeout,
		logger:      o.logger,
		now:         o.now,
	}
}

// Kind returns config.TypeFunctionUpdate.
func (b *FunctionBackend) Kind() config.DeploymentType {
	return config.TypeFunctionUpdate
}

// Deploy pushes the job's code bundle to the target function.
//
// The bundle is taken from the first present payload artifact. The update
// is pushed, then the backend waits for the control plane to finish
// applying it, bounded by the configured timeout. For non-production
// environments the function's environment variables are then stamped with
// the deployment time and environment tag; that step is best effort and a
// failure there is logged as a warning without failing the deployment,
// since the new code is already live.
func (b *FunctionBackend) Deploy(ctx context.Context, cfg *config.Deployment, artifacts artifact.Set) (*Result, error) {
	name := cfg.TargetFunction()
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingTarget, config.KeyTargetFunction)
	}

	payload, ok := artifacts.First(payloadNames...)
	if !ok {
		return nil, fmt.Errorf("%w: expected one of %v", ErrMissingArtifact, payloadNames)
	}

	if b.logger != nil {
		b.logger.InfoContext(ctx, "updating function code",
			"function", name,
			"artifact", payload.Name,
			"size", payload.Size,
			"publish", cfg.PublishVersion(),
		)
	}

	out, err := b.api.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      payload.Body,
		Publish:      cfg.PublishVersion(),
	})
	if err != nil {
		return nil, newError(b.Kind(), "update-code", apiFault(err))
	}

	if err := b.waitUpdated(ctx, name); err != nil {
		return nil, err
	}

	if !cfg.Production() {
		if err := b.stampDeployment(ctx, name, cfg); err != nil {
			if b.logger != nil {
				b.logger.WarnContext(ctx, "post-deploy configuration update failed",
					"function", name,
					"error", err,
				)
			}
		}
	}

	result := &FunctionResult{
		ARN:          aws.ToString(out.FunctionArn),
		Version:      aws.ToString(out.Version),
		LastModified: aws.ToString(out.LastModified),
	}

	if b.logger != nil {
		b.logger.DebugContext(ctx, "function code updated",
			"function", name,
			"version", result.Version,
		)
	}

	return &Result{Kind: b.Kind(), Function: result}, nil
}

// waitUpdated blocks until the function's update status settles.
func (b *FunctionBackend) waitUpdated(ctx context.Context, name string) error {
	err := b.waiter.Wait(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(name),
	}, b.waitTimeout)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "max wait time") {
		return newError(b.Kind(), "wait-updated", fmt.Errorf("%w after %s", ErrWaitTimeout, b.waitTimeout))
	}
	return newError(b.Kind(), "wait-updated", apiFault(err))
}

// stampDeployment merges the deployment markers into the function's
// environment. The configuration update replaces the whole variable map,
// so the current variables are fetched and carried over.
func (b *FunctionBackend) stampDeployment(ctx context.Context, name string, cfg *config.Deployment) error {
	current, err := b.api.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return apiFault(err)
	}

	vars := make(map[string]string)
	if current.Environment != nil {
		for k, v := range current.Environment.Variables {
			vars[k] = v
		}
	}
	vars[envDeployedAt] = b.now().UTC().Format(time.RFC3339)
	vars[envDeployEnv] = cfg.Environment()

	_, err = b.api.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(name),
		Environment:  &types.Environment{Variables: vars},
	})
	if err != nil {
		return apiFault(err)
	}
	return nil
}
