package worker

import "github.com/trellisci/deploykit/artifact"

// Job is one deployment job handed to the worker by the control plane.
// Jobs are invocation-scoped; nothing about them is persisted and nothing
// is shared between jobs.
type Job struct {
	// ID is the control plane's job identifier, required for result
	// reports.
	ID string

	// ActionConfiguration is the job-specific configuration overlay, the
	// highest-precedence layer during resolution.
	ActionConfiguration map[string]string

	// InputArtifacts name the artifacts to resolve before dispatch.
	InputArtifacts []artifact.Ref

	// OutputArtifacts are the locations the job summary is written to on
	// success.
	OutputArtifacts []artifact.Ref
}
