// Where: internal/awsapi/ssm.go
// What: Thin SSM adapter for parameter discovery and tag reads.
// Why: Secret resolution walks the whole parameter store, page by page.
package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ssmSDK is the slice of the generated SSM client this adapter calls.
// *ssm.Client satisfies it; tests substitute fakes.
type ssmSDK interface {
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
	ListTagsForResource(ctx context.Context, params *ssm.ListTagsForResourceInput, optFns ...func(*ssm.Options)) (*ssm.ListTagsForResourceOutput, error)
}

// SSM wraps the generated client with retry and pagination.
type SSM struct {
	api    ssmSDK
	policy RetryPolicy
}

func NewSSM(api ssmSDK, policy RetryPolicy) *SSM {
	return &SSM{api: api, policy: policy}
}

// describeParametersPageSize is the service maximum for one page.
const describeParametersPageSize = 50

// DescribeParameters lists every parameter in the account and region,
// following pagination to the end.
func (c *SSM) DescribeParameters(ctx context.Context) ([]ssmtypes.ParameterMetadata, error) {
	var parameters []ssmtypes.ParameterMetadata
	var nextToken *string
	for {
		input := &ssm.DescribeParametersInput{
			MaxResults: aws.Int32(describeParametersPageSize),
			NextToken:  nextToken,
		}
		out, err := callWithRetry(ctx, c.policy, func() (*ssm.DescribeParametersOutput, error) {
			return c.api.DescribeParameters(ctx, input)
		})
		if err != nil {
			return nil, fmt.Errorf("describe parameters: %w", err)
		}
		parameters = append(parameters, out.Parameters...)
		if out.NextToken == nil || *out.NextToken == "" {
			return parameters, nil
		}
		nextToken = out.NextToken
	}
}

// ListTagsForParameter returns the tags attached to one parameter.
func (c *SSM) ListTagsForParameter(ctx context.Context, name string) ([]ssmtypes.Tag, error) {
	out, err := callWithRetry(ctx, c.policy, func() (*ssm.ListTagsForResourceOutput, error) {
		return c.api.ListTagsForResource(ctx, &ssm.ListTagsForResourceInput{
			ResourceType: ssmtypes.ResourceTypeForTaggingParameter,
			ResourceId:   aws.String(name),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list tags for parameter %s: %w", name, err)
	}
	return out.TagList, nil
}
