// Package config resolves the deployment configuration for a single job.
//
// A job's effective configuration is assembled from three layers, lowest
// precedence first: built-in defaults, the process environment, and the
// job's action configuration. Later layers override earlier ones key by
// key. Unknown keys are preserved so backends can read backend-specific
// settings without the resolver enumerating them.
//
// Resolution is pure: it reads only its arguments and performs no I/O.
package config

import (
	"sort"
	"strconv"
	"strings"
)

// DeploymentType identifies which backend a job targets. The set is closed:
// adding a deployment type means adding a backend implementation, not a
// configuration value.
type DeploymentType string

const (
	// TypeFunctionUpdate deploys a code bundle to a serverless function.
	TypeFunctionUpdate DeploymentType = "function-update"

	// TypeContainerService forces a new rollout of a container service.
	TypeContainerService DeploymentType = "container-service"

	// TypeStaticArtifact publishes the artifact to static storage.
	TypeStaticArtifact DeploymentType = "static-artifact"
)

// Valid reports whether t is one of the supported deployment types.
func (t DeploymentType) Valid() bool {
	switch t {
	case TypeFunctionUpdate, TypeContainerService, TypeStaticArtifact:
		return true
	}
	return false
}

// String returns the string representation of the deployment type.
func (t DeploymentType) String() string {
	return string(t)
}

// Well-known configuration keys. Action configuration and the environment
// layer both address settings through these names.
const (
	// KeyDeploymentType selects the backend. Required; no default.
	KeyDeploymentType = "deploymentType"

	// KeyEnvironment names the target environment tier, e.g. "dev" or
	// "production".
	KeyEnvironment = "environment"

	// KeyRegion names the region backends operate in.
	KeyRegion = "region"

	// KeyTargetFunction names the function updated by function-update jobs.
	KeyTargetFunction = "targetFunction"

	// KeyCluster names the cluster for container-service jobs.
	KeyCluster = "cluster"

	// KeyService names the service for container-service jobs.
	KeyService = "service"

	// KeyStaticBucket names the destination bucket for static-artifact jobs.
	KeyStaticBucket = "staticBucket"

	// KeyStaticPrefix is the key prefix static-artifact jobs publish under.
	KeyStaticPrefix = "staticPrefix"

	// KeyPublishVersion controls whether function-update jobs publish an
	// immutable version after pushing code.
	KeyPublishVersion = "publishVersion"
)

// ProductionEnvironment is the environment tier that suppresses best-effort
// post-deploy configuration updates.
const ProductionEnvironment = "production"

// Defaults returns a fresh copy of the built-in defaults layer.
//
// DeploymentType has no default: a job that does not state its deployment
// type fails resolution rather than deploying somewhere surprising.
func Defaults() map[string]string {
	return map[string]string{
		KeyEnvironment:    "dev",
		KeyRegion:         "us-east-1",
		KeyStaticPrefix:   "deployments/",
		KeyPublishVersion: "true",
	}
}

// Deployment is a resolved, validated deployment configuration. It is
// immutable after resolution; the typed accessors read the merged values.
type Deployment struct {
	values map[string]string
}

// Option configures Resolve.
type Option func(*resolveOptions)

type resolveOptions struct {
	defaults map[string]string
}

// WithDefaults replaces the built-in defaults layer.
func WithDefaults(defaults map[string]string) Option {
	return func(o *resolveOptions) {
		o.defaults = defaults
	}
}

// Resolve merges the three configuration layers and validates the result.
//
// Precedence, lowest first: defaults, environment, action. A key present
// with an empty value is treated as unset and does not mask a lower layer.
// The input maps are copied; callers may mutate them afterwards.
//
// Resolution fails with a *ValidationError when the merged configuration
// has no deployment type or names one outside the supported set.
func Resolve(action, environment map[string]string, opts ...Option) (*Deployment, error) {
	o := &resolveOptions{defaults: Defaults()}
	for _, opt := range opts {
		opt(o)
	}

	values := make(map[string]string)
	for _, layer := range []map[string]string{o.defaults, environment, action} {
		for k, v := range layer {
			if v == "" {
				continue
			}
			values[k] = v
		}
	}

	t := DeploymentType(values[KeyDeploymentType])
	if t == "" {
		return nil, &ValidationError{
			Key:    KeyDeploymentType,
			Reason: "no deployment type configured",
		}
	}
	if !t.Valid() {
		return nil, &ValidationError{
			Key:    KeyDeploymentType,
			Value:  string(t),
			Reason: "unsupported deployment type",
		}
	}

	return &Deployment{values: values}, nil
}

// Type returns the deployment type the job targets.
func (d *Deployment) Type() DeploymentType {
	return DeploymentType(d.values[KeyDeploymentType])
}

// Environment returns the target environment tier.
func (d *Deployment) Environment() string {
	return d.values[KeyEnvironment]
}

// Production reports whether the target environment is the production tier.
// The comparison ignores case.
func (d *Deployment) Production() bool {
	return strings.EqualFold(d.Environment(), ProductionEnvironment)
}

// Region returns the configured region.
func (d *Deployment) Region() string {
	return d.values[KeyRegion]
}

// TargetFunction returns the function name for function-update jobs.
func (d *Deployment) TargetFunction() string {
	return d.values[KeyTargetFunction]
}

// Cluster returns the cluster name for container-service jobs.
func (d *Deployment) Cluster() string {
	return d.values[KeyCluster]
}

// Service returns the service name for container-service jobs.
func (d *Deployment) Service() string {
	return d.values[KeyService]
}

// StaticBucket returns the destination bucket for static-artifact jobs.
func (d *Deployment) StaticBucket() string {
	return d.values[KeyStaticBucket]
}

// StaticPrefix returns the key prefix static-artifact jobs publish under.
func (d *Deployment) StaticPrefix() string {
	return d.values[KeyStaticPrefix]
}

// PublishVersion reports whether function-update jobs publish an immutable
// version. Unparseable values fall back to the default of true.
func (d *Deployment) PublishVersion() bool {
	v, err := strconv.ParseBool(d.values[KeyPublishVersion])
	if err != nil {
		return true
	}
	return v
}

// Get returns the raw value for key, or the empty string when unset. Unknown
// keys survive resolution, so backend-specific settings are reachable here.
func (d *Deployment) Get(key string) string {
	return d.values[key]
}

// Keys returns the sorted set of keys present after resolution.
func (d *Deployment) Keys() []string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
