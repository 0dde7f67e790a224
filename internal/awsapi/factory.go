// Where: internal/awsapi/factory.go
// What: AWS client factory for the manager's ECS and SSM adapters.
// Why: Encapsulate SDK configuration, including local-stack endpoints.
package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Options configures client construction. The zero value uses the
// default credential chain and the Lambda runtime's region.
type Options struct {
	// Region overrides the region from the environment when non-empty.
	Region string
	// Endpoint routes both services to a local stack and switches to
	// static dummy credentials. Leave empty in real deployments.
	Endpoint string
	// Retry bounds throttle retries on every call.
	Retry RetryPolicy
}

// Clients bundles the two adapters every command runs on.
type Clients struct {
	ECS *ECS
	SSM *SSM
}

// NewClients loads the AWS configuration once and builds both
// adapters from it.
func NewClients(ctx context.Context, opts Options) (*Clients, error) {
	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ecsClient := ecs.NewFromConfig(cfg, func(options *ecs.Options) {
		if opts.Endpoint != "" {
			options.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	ssmClient := ssm.NewFromConfig(cfg, func(options *ssm.Options) {
		if opts.Endpoint != "" {
			options.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &Clients{
		ECS: NewECS(ecsClient, opts.Retry),
		SSM: NewSSM(ssmClient, opts.Retry),
	}, nil
}

func loadAWSConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		creds := credentials.NewStaticCredentialsProvider("dummy", "dummy", "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	return cfg, nil
}
