// Where: internal/awsapi/ecs.go
// What: Thin ECS adapter behind the orchestration commands.
// Why: Commands speak in clusters and services, not SDK input structs.
package awsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// ecsSDK is the slice of the generated ECS client this adapter calls.
// *ecs.Client satisfies it; tests substitute fakes.
type ecsSDK interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	ListTasks(ctx context.Context, params *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
	DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
	RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// ECS wraps the generated client with retry, failure folding, and
// call shapes sized to what the commands actually need.
type ECS struct {
	api    ecsSDK
	policy RetryPolicy
}

func NewECS(api ecsSDK, policy RetryPolicy) *ECS {
	return &ECS{api: api, policy: policy}
}

func failureError(f ecstypes.Failure) *FailureError {
	return &FailureError{
		Arn:    aws.ToString(f.Arn),
		Reason: aws.ToString(f.Reason),
		Detail: aws.ToString(f.Detail),
	}
}

// DescribeService resolves one service in a cluster. An absence ECS
// reports through the failures list comes back as a not-found error.
func (c *ECS) DescribeService(ctx context.Context, cluster, service string) (*ecstypes.Service, error) {
	out, err := callWithRetry(ctx, c.policy, func() (*ecs.DescribeServicesOutput, error) {
		return c.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(cluster),
			Services: []string{service},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("describe service %s/%s: %w", cluster, service, err)
	}
	if len(out.Failures) > 0 {
		return nil, fmt.Errorf("describe service %s/%s: %w", cluster, service, failureError(out.Failures[0]))
	}
	if len(out.Services) == 0 {
		return nil, fmt.Errorf("describe service %s/%s: %w", cluster, service, &FailureError{Arn: service, Reason: "MISSING"})
	}
	return &out.Services[0], nil
}

// DescribeTaskDefinition resolves a family, family:revision, or ARN
// reference to its full definition.
func (c *ECS) DescribeTaskDefinition(ctx context.Context, ref string) (*ecstypes.TaskDefinition, error) {
	out, err := callWithRetry(ctx, c.policy, func() (*ecs.DescribeTaskDefinitionOutput, error) {
		return c.api.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
			TaskDefinition: aws.String(ref),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("describe task definition %s: %w", ref, err)
	}
	return out.TaskDefinition, nil
}

// RegisterTaskDefinition registers a new revision and returns it as
// the control plane recorded it.
func (c *ECS) RegisterTaskDefinition(ctx context.Context, input *ecs.RegisterTaskDefinitionInput) (*ecstypes.TaskDefinition, error) {
	out, err := callWithRetry(ctx, c.policy, func() (*ecs.RegisterTaskDefinitionOutput, error) {
		return c.api.RegisterTaskDefinition(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("register task definition %s: %w", aws.ToString(input.Family), err)
	}
	return out.TaskDefinition, nil
}

// UpdateService points a service at a task definition revision. The
// deployment is always forced so tasks roll even when the revision
// content is identical.
func (c *ECS) UpdateService(ctx context.Context, cluster, service, taskDef string) error {
	_, err := callWithRetry(ctx, c.policy, func() (*ecs.UpdateServiceOutput, error) {
		return c.api.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:            aws.String(cluster),
			Service:            aws.String(service),
			TaskDefinition:     aws.String(taskDef),
			ForceNewDeployment: true,
		})
	})
	if err != nil {
		return fmt.Errorf("update service %s/%s: %w", cluster, service, err)
	}
	return nil
}

// TaskFilter narrows a task listing. Cluster is required; zero values
// elsewhere mean "any".
type TaskFilter struct {
	Cluster       string
	Service       string
	Family        string
	DesiredStatus ecstypes.DesiredStatus
}

// ListTasks returns the ARNs matching the filter. One page only: the
// health snapshot is capped at what a single describe can carry.
func (c *ECS) ListTasks(ctx context.Context, filter TaskFilter) ([]string, error) {
	input := &ecs.ListTasksInput{Cluster: aws.String(filter.Cluster)}
	if filter.Service != "" {
		input.ServiceName = aws.String(filter.Service)
	}
	if filter.Family != "" {
		input.Family = aws.String(filter.Family)
	}
	if filter.DesiredStatus != "" {
		input.DesiredStatus = filter.DesiredStatus
	}

	out, err := callWithRetry(ctx, c.policy, func() (*ecs.ListTasksOutput, error) {
		return c.api.ListTasks(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks in %s: %w", filter.Cluster, err)
	}
	return out.TaskArns, nil
}

// DescribeTasks fetches task detail for up to 100 ARNs. Failures come
// back alongside the tasks so callers can report partial absence.
func (c *ECS) DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]ecstypes.Task, []ecstypes.Failure, error) {
	if len(taskArns) == 0 {
		return nil, nil, nil
	}
	out, err := callWithRetry(ctx, c.policy, func() (*ecs.DescribeTasksOutput, error) {
		return c.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{
			Cluster: aws.String(cluster),
			Tasks:   taskArns,
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("describe tasks in %s: %w", cluster, err)
	}
	return out.Tasks, out.Failures, nil
}

// RunTask launches exactly one task. Placement problems ECS reports in
// the failures list fold into the returned error.
func (c *ECS) RunTask(ctx context.Context, input *ecs.RunTaskInput) (*ecstypes.Task, error) {
	out, err := callWithRetry(ctx, c.policy, func() (*ecs.RunTaskOutput, error) {
		return c.api.RunTask(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("run task %s: %w", aws.ToString(input.TaskDefinition), err)
	}
	if len(out.Failures) > 0 {
		return nil, fmt.Errorf("run task %s: %w", aws.ToString(input.TaskDefinition), failureError(out.Failures[0]))
	}
	if len(out.Tasks) == 0 {
		return nil, fmt.Errorf("run task %s: no task started", aws.ToString(input.TaskDefinition))
	}
	return &out.Tasks[0], nil
}

// WaitTasksStopped blocks until every listed task reaches STOPPED or
// the wait budget runs out.
func (c *ECS) WaitTasksStopped(ctx context.Context, cluster string, taskArns []string, maxWait time.Duration) error {
	waiter := ecs.NewTasksStoppedWaiter(c.api, func(o *ecs.TasksStoppedWaiterOptions) {
		o.MinDelay = 15 * time.Second
		o.MaxDelay = 60 * time.Second
	})
	input := &ecs.DescribeTasksInput{
		Cluster: aws.String(cluster),
		Tasks:   taskArns,
	}
	if err := waiter.Wait(ctx, input, maxWait); err != nil {
		return fmt.Errorf("wait for tasks stopped in %s: %w", cluster, err)
	}
	return nil
}
