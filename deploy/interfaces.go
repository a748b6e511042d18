package deploy

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// FunctionAPI is the subset of the serverless function control API the
// function backend uses. Tests substitute a mock.
type FunctionAPI interface {
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
}

// FunctionWaiter blocks until a function update has been applied, bounded
// by maxWait. The SDK's FunctionUpdated waiter is the production
// implementation.
type FunctionWaiter interface {
	Wait(ctx context.Context, params *lambda.GetFunctionConfigurationInput, maxWait time.Duration, optFns ...func(*lambda.FunctionUpdatedWaiterOptions)) error
}

// ServiceAPI is the subset of the container orchestration API the service
// backend uses.
type ServiceAPI interface {
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

// ObjectPutter writes a payload to object storage. The artifact store is
// the production implementation.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error)
}

// Compile-time checks that the SDK clients satisfy the interfaces.
var (
	_ FunctionAPI    = (*lambda.Client)(nil)
	_ FunctionWaiter = (*lambda.FunctionUpdatedWaiter)(nil)
	_ ServiceAPI     = (*ecs.Client)(nil)
)
