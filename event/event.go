// Package event defines the wire shapes of the job events delivered to
// the deployment handlers by the pipeline control plane.
//
// The types mirror the delivered JSON exactly, including the
// "CodePipeline.job" envelope key. The action configuration is a free
// key/value map, so the stock Lambda event bindings (which type it as a
// fixed struct) cannot carry it.
package event

import (
	"github.com/trellisci/deploykit/artifact"
	"github.com/trellisci/deploykit/worker"
)

// JobEvent is the envelope of a delivered job.
type JobEvent struct {
	Job Job `json:"CodePipeline.job"`
}

// Job is the control plane's view of one deployment job.
type Job struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Data      Data   `json:"data"`
}

// Data carries the job's configuration, artifact lists, and the scoped
// credentials for reading and writing the artifacts.
type Data struct {
	ActionConfiguration ActionConfiguration `json:"actionConfiguration"`
	InputArtifacts      []Artifact          `json:"inputArtifacts"`
	OutputArtifacts     []Artifact          `json:"outputArtifacts"`
	ArtifactCredentials *Credentials        `json:"artifactCredentials,omitempty"`
	ContinuationToken   string              `json:"continuationToken,omitempty"`
}

// ActionConfiguration wraps the per-action key/value overrides.
type ActionConfiguration struct {
	Configuration map[string]string `json:"configuration"`
}

// Artifact is a named artifact reference with its storage location.
type Artifact struct {
	Name     string   `json:"name"`
	Revision string   `json:"revision,omitempty"`
	Location Location `json:"location"`
}

// Location is the storage location of an artifact. Type is "S3" for
// every job the control plane currently delivers.
type Location struct {
	Type string     `json:"type"`
	S3   S3Location `json:"s3Location"`
}

// S3Location is a bucket/key pair.
type S3Location struct {
	Bucket string `json:"bucketName"`
	Key    string `json:"objectKey"`
}

// Credentials are the job-scoped credentials for the artifact store.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// WorkerJob converts the wire job into the worker's domain job. Fields
// the worker does not consume, such as the account id and the artifact
// credentials, stay on the wire type for the handler to use.
func (j Job) WorkerJob() worker.Job {
	return worker.Job{
		ID:                  j.ID,
		ActionConfiguration: j.Data.ActionConfiguration.Configuration,
		InputArtifacts:      refs(j.Data.InputArtifacts),
		OutputArtifacts:     refs(j.Data.OutputArtifacts),
	}
}

func refs(artifacts []Artifact) []artifact.Ref {
	if len(artifacts) == 0 {
		return nil
	}
	out := make([]artifact.Ref, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, artifact.Ref{
			Name:   a.Name,
			Bucket: a.Location.S3.Bucket,
			Key:    a.Location.S3.Key,
		})
	}
	return out
}
