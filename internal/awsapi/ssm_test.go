// Where: internal/awsapi/ssm_test.go
// What: Tests for SSM pagination and tag reads.
// Why: A dropped page silently loses candidate secrets.
package awsapi

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMSDK struct {
	describeParameters  func(*ssm.DescribeParametersInput) (*ssm.DescribeParametersOutput, error)
	listTagsForResource func(*ssm.ListTagsForResourceInput) (*ssm.ListTagsForResourceOutput, error)
}

func (f *fakeSSMSDK) DescribeParameters(_ context.Context, in *ssm.DescribeParametersInput, _ ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	return f.describeParameters(in)
}

func (f *fakeSSMSDK) ListTagsForResource(_ context.Context, in *ssm.ListTagsForResourceInput, _ ...func(*ssm.Options)) (*ssm.ListTagsForResourceOutput, error) {
	return f.listTagsForResource(in)
}

func TestDescribeParametersFollowsPagination(t *testing.T) {
	pages := map[string]*ssm.DescribeParametersOutput{
		"": {
			Parameters: []ssmtypes.ParameterMetadata{{Name: aws.String("/apps/prod/db_url")}},
			NextToken:  aws.String("page2"),
		},
		"page2": {
			Parameters: []ssmtypes.ParameterMetadata{{Name: aws.String("/apps/prod/api_key")}},
			NextToken:  aws.String("page3"),
		},
		"page3": {
			Parameters: []ssmtypes.ParameterMetadata{{Name: aws.String("/other/thing")}},
		},
	}

	calls := 0
	fake := &fakeSSMSDK{
		describeParameters: func(in *ssm.DescribeParametersInput) (*ssm.DescribeParametersOutput, error) {
			calls++
			return pages[aws.ToString(in.NextToken)], nil
		},
	}

	parameters, err := NewSSM(fake, RetryPolicy{}).DescribeParameters(context.Background())
	if err != nil {
		t.Fatalf("describe parameters: %v", err)
	}
	if calls != 3 {
		t.Fatalf("unexpected page count: %d", calls)
	}
	if len(parameters) != 3 {
		t.Fatalf("unexpected parameter count: %d", len(parameters))
	}
	if aws.ToString(parameters[2].Name) != "/other/thing" {
		t.Fatalf("pages out of order: %v", aws.ToString(parameters[2].Name))
	}
}

func TestListTagsForParameterTargetsParameters(t *testing.T) {
	var captured *ssm.ListTagsForResourceInput
	fake := &fakeSSMSDK{
		listTagsForResource: func(in *ssm.ListTagsForResourceInput) (*ssm.ListTagsForResourceOutput, error) {
			captured = in
			return &ssm.ListTagsForResourceOutput{
				TagList: []ssmtypes.Tag{{Key: aws.String("ENV_VAR_NAME"), Value: aws.String("DB_URL")}},
			}, nil
		},
	}

	tags, err := NewSSM(fake, RetryPolicy{}).ListTagsForParameter(context.Background(), "/apps/prod/db_url")
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if captured.ResourceType != ssmtypes.ResourceTypeForTaggingParameter {
		t.Fatalf("unexpected resource type: %s", captured.ResourceType)
	}
	if aws.ToString(captured.ResourceId) != "/apps/prod/db_url" {
		t.Fatalf("unexpected resource id: %s", aws.ToString(captured.ResourceId))
	}
	if len(tags) != 1 || aws.ToString(tags[0].Value) != "DB_URL" {
		t.Fatalf("unexpected tags: %#v", tags)
	}
}
