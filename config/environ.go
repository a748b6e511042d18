package config

import "strings"

// environKeys maps recognized process environment variables to their
// configuration keys. Variables outside this table do not reach the
// environment layer; job-specific settings arrive through the action
// configuration instead.
var environKeys = map[string]string{
	"DEPLOYMENT_TYPE": KeyDeploymentType,
	"ENVIRONMENT":     KeyEnvironment,
	"AWS_REGION":      KeyRegion,
	"TARGET_FUNCTION": KeyTargetFunction,
	"ECS_CLUSTER":     KeyCluster,
	"ECS_SERVICE":     KeyService,
	"STATIC_BUCKET":   KeyStaticBucket,
	"STATIC_PREFIX":   KeyStaticPrefix,
	"PUBLISH_VERSION": KeyPublishVersion,
}

// EnvironLayer extracts the environment configuration layer from a process
// environment in the form returned by os.Environ. Empty values are dropped,
// matching the overlay rule that empty means unset.
func EnvironLayer(environ []string) map[string]string {
	layer := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if key, mapped := environKeys[name]; mapped {
			layer[key] = value
		}
	}
	return layer
}
