package deploy

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/trellisci/deploykit/config"
)

var (
	// ErrMissingArtifact indicates none of the expected artifact names was
	// present in the resolved set.
	ErrMissingArtifact = errors.New("required artifact not present")

	// ErrMissingTarget indicates the configuration names no deployment
	// target for the selected backend.
	ErrMissingTarget = errors.New("deployment target not configured")

	// ErrUnsupportedBackend indicates a deployment type with no backend.
	// Configuration validation makes this unreachable in normal operation.
	ErrUnsupportedBackend = errors.New("unsupported deployment type")

	// ErrWaitTimeout indicates the backend gave up waiting for an update
	// to be applied.
	ErrWaitTimeout = errors.New("timed out waiting for update to apply")
)

// Error wraps a failed backend operation with the deployment type and the
// operation that failed. Timeouts additionally match ErrWaitTimeout.
type Error struct {
	// Backend is the deployment type whose backend failed.
	Backend config.DeploymentType

	// Op names the failed operation, e.g. "update-code".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error returns the error message with backend and operation context.
func (e *Error) Error() string {
	return fmt.Sprintf("deploy: %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(backend config.DeploymentType, op string, err error) *Error {
	return &Error{Backend: backend, Op: op, Err: err}
}

// apiFault surfaces the service error code when the cause is a managed API
// error, keeping failure messages diagnosable without SDK noise.
func apiFault(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err
}
