// Package deploy executes a resolved deployment against its backend.
//
// Each supported deployment type has exactly one backend implementation:
// FunctionBackend pushes a code bundle to a serverless function,
// ServiceBackend forces a new rollout of a container service, and
// StaticBackend publishes the artifact to static storage. The Dispatcher
// selects among them with an exhaustive match on the deployment type; the
// set is closed and extending it means adding a backend here.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/config"
)

// Artifact names payload-consuming backends look for, in preference order.
const (
	ArtifactBuild  = "BuildArtifact"
	ArtifactSource = "SourceOutput"
)

// payloadNames is the shared lookup order for the deployable payload.
var payloadNames = []string{ArtifactBuild, ArtifactSource}

// Backend deploys a job's artifacts according to its resolved
// configuration. Implementations are single-purpose and stateless; all
// collaborators arrive through their constructors.
type Backend interface {
	// Kind returns the deployment type the backend serves.
	Kind() config.DeploymentType

	// Deploy performs the deployment and describes what was deployed.
	Deploy(ctx context.Context, cfg *config.Deployment, artifacts artifact.Set) (*Result, error)
}

// Result describes a completed deployment. Exactly one of the kind-specific
// fields is set, matching Kind.
type Result struct {
	Kind config.DeploymentType `json:"kind"`

	Function *FunctionResult `json:"function,omitempty"`
	Service  *ServiceResult  `json:"service,omitempty"`
	Static   *StaticResult   `json:"static,omitempty"`
}

// FunctionResult describes an updated serverless function.
type FunctionResult struct {
	// ARN identifies the updated function.
	ARN string `json:"arn"`

	// Version is the function version holding the new code.
	Version string `json:"version"`

	// LastModified is the update timestamp reported by the control API.
	LastModified string `json:"lastModified"`
}

// ServiceResult describes a container service rollout.
type ServiceResult struct {
	// ARN identifies the service rolled out.
	ARN string `json:"arn"`

	// TaskDefinition is the task definition the rollout runs.
	TaskDefinition string `json:"taskDefinition"`
}

// StaticResult describes a published static artifact.
type StaticResult struct {
	// Bucket and Key locate the published object.
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// ETag is the storage entity tag of the published object.
	ETag string `json:"etag"`
}

// Location returns the s3:// URI of the published object.
func (r *StaticResult) Location() string {
	return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Key)
}

// DeployedVersion returns the version identifier consumers of the job's
// output variables see: the function version, the task definition, or the
// published object's entity tag, depending on the deployment kind.
func (r *Result) DeployedVersion() string {
	switch r.Kind {
	case config.TypeFunctionUpdate:
		if r.Function != nil {
			return r.Function.Version
		}
	case config.TypeContainerService:
		if r.Service != nil {
			return r.Service.TaskDefinition
		}
	case config.TypeStaticArtifact:
		if r.Static != nil {
			return r.Static.ETag
		}
	}
	return ""
}

// Dispatcher routes a resolved deployment to its backend.
type Dispatcher struct {
	function *FunctionBackend
	service  *ServiceBackend
	static   *StaticBackend
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher over the three backends.
func NewDispatcher(function *FunctionBackend, service *ServiceBackend, static *StaticBackend, opts ...Option) *Dispatcher {
	o := applyOptions(opts)
	return &Dispatcher{
		function: function,
		service:  service,
		static:   static,
		logger:   o.logger,
	}
}

// Dispatch selects the backend for the deployment's type and runs it.
// Configuration resolution already validated the type, so the default
// branch guards against drift between the two packages rather than bad
// input.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *config.Deployment, artifacts artifact.Set) (*Result, error) {
	var backend Backend
	switch cfg.Type() {
	case config.TypeFunctionUpdate:
		backend = d.function
	case config.TypeContainerService:
		backend = d.service
	case config.TypeStaticArtifact:
		backend = d.static
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Type())
	}

	if d.logger != nil {
		d.logger.InfoContext(ctx, "dispatching deployment",
			"deployment_type", cfg.Type().String(),
			"environment", cfg.Environment(),
		)
	}
	return backend.Deploy(ctx, cfg, artifacts)
}
