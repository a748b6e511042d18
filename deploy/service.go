package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
)

// ServiceBackend forces a new rollout of a container service, picking up
// whatever image its current task definition points at. It consumes no
// artifact payload: the image was pushed by an earlier pipeline stage.
type ServiceBackend struct {
	api    ServiceAPI
	logger *slog.Logger
}

// NewServiceBackend returns a service backend over the given orchestration
// API.
func NewServiceBackend(api ServiceAPI, opts ...Option) *ServiceBackend {
	o := applyOptions(opts)
	return &ServiceBackend{
		api:    api,
		logger: o.logger,
	}
}

// Kind returns config.TypeContainerService.
func (b *ServiceBackend) Kind() config.DeploymentType {
	return config.TypeContainerService
}

// Deploy forces a new deployment of the configured cluster's service.
func (b *ServiceBackend) Deploy(ctx context.Context, cfg *config.Deployment, _ artifact.Set) (*Result, error) {
	cluster, service := cfg.Cluster(), cfg.Service()
	if cluster == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingTarget, config.KeyCluster)
	}
	if service == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingTarget, config.KeyService)
	}

	if b.logger != nil {
		b.logger.InfoContext(ctx, "forcing service rollout",
			"cluster", cluster,
			"service", service,
		)
	}

	out, err := b.api.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(cluster),
		Service:            aws.String(service),
		ForceNewDeployment: true,
	})
	if err != nil {
		return nil, newError(b.Kind(), "update-service", apiFault(err))
	}

	result := &ServiceResult{}
	if out.Service != nil {
		result.ARN = aws.ToString(out.Service.ServiceArn)
		result.TaskDefinition = aws.ToString(out.Service.TaskDefinition)
	}

	if b.logger != nil {
		b.logger.DebugContext(ctx, "service rollout started",
			"service", result.ARN,
			"task_definition", result.TaskDefinition,
		)
	}

	return &Result{Kind: b.Kind(), Service: result}, nil
}
