package artifact

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for classified storage failures. Wrap checks go through
// errors.Is on the *Error returned by store operations.
var (
	// ErrObjectNotFound indicates the referenced object does not exist.
	ErrObjectNotFound = errors.New("artifact: object not found")

	// ErrBucketNotFound indicates the referenced bucket does not exist.
	ErrBucketNotFound = errors.New("artifact: bucket not found")

	// ErrAccessDenied indicates the caller may not read or write the object.
	ErrAccessDenied = errors.New("artifact: access denied")

	// ErrInvalidRef indicates a reference with a missing name, bucket, or key.
	ErrInvalidRef = errors.New("artifact: invalid artifact reference")
)

// Error is the error type returned by store operations. It carries the
// operation and the artifact context so failure reports can say which
// artifact, in which location, failed.
type Error struct {
	// Op is the failed operation, "get" or "put".
	Op string

	// Name is the artifact name, when the operation had one.
	Name string

	// Bucket and Key locate the object involved.
	Bucket string
	Key    string

	// Err is the underlying cause.
	Err error
}

// Error returns the error message with the artifact context.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("artifact: %s %q (s3://%s/%s): %v", e.Op, e.Name, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("artifact: %s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, ref Ref, err error) *Error {
	return &Error{Op: op, Name: ref.Name, Bucket: ref.Bucket, Key: ref.Key, Err: err}
}

// convertAPIError maps storage API failures to package sentinels where the
// failure class is recognizable, and surfaces the API error code otherwise.
func convertAPIError(err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return ErrObjectNotFound
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrObjectNotFound
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied":
			return ErrAccessDenied
		}
		return fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}

	return err
}
