// Where: internal/runtask/runtask.go
// What: One-off task launches with optional entrypoint override and wait.
// Why: Migrations and maintenance jobs run as ad-hoc tasks, not services.
package runtask

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/config"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/health"
)

// ECSAPI is the slice of the orchestration plane a task launch needs.
// *awsapi.ECS satisfies it.
type ECSAPI interface {
	DescribeTaskDefinition(ctx context.Context, ref string) (*ecstypes.TaskDefinition, error)
	RunTask(ctx context.Context, input *ecs.RunTaskInput) (*ecstypes.Task, error)
	DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]ecstypes.Task, []ecstypes.Failure, error)
	WaitTasksStopped(ctx context.Context, cluster string, taskArns []string, maxWait time.Duration) error
}

// Runner launches single tasks on a cluster.
type Runner struct {
	ecs ECSAPI
	cfg config.RunTaskConfig
	log zerolog.Logger
}

// New returns a Runner using the given launch settings.
func New(ecsAPI ECSAPI, cfg config.RunTaskConfig, logger zerolog.Logger) *Runner {
	return &Runner{ecs: ecsAPI, cfg: cfg, log: logger}
}

// Run starts one task from the referenced task definition. An entrypoint
// in the body replaces the container command; with wait set the call
// blocks until the task stops and reports its final state instead of the
// launch snapshot.
func (r *Runner) Run(ctx context.Context, body command.RunTaskBody) (*command.RunTaskResult, error) {
	overrides, err := r.buildOverrides(ctx, body)
	if err != nil {
		return nil, err
	}

	input := &ecs.RunTaskInput{
		Cluster:              aws.String(body.ClusterID),
		TaskDefinition:       aws.String(body.TaskDefinition),
		Count:                aws.Int32(1),
		Overrides:            overrides,
		NetworkConfiguration: r.networkConfiguration(),
	}
	if r.cfg.StartedBy != "" {
		input.StartedBy = aws.String(r.cfg.StartedBy)
	}
	if r.cfg.LaunchType != "" {
		input.LaunchType = ecstypes.LaunchType(r.cfg.LaunchType)
	}

	task, err := r.ecs.RunTask(ctx, input)
	if err != nil {
		return nil, err
	}
	arn := aws.ToString(task.TaskArn)
	r.log.Info().
		Str("cluster", body.ClusterID).
		Str("task_definition", body.TaskDefinition).
		Str("task_arn", arn).
		Bool("wait", body.Wait).
		Msg("task started")

	if body.Wait {
		task, err = r.awaitStopped(ctx, body.ClusterID, arn)
		if err != nil {
			return nil, err
		}
		r.log.Info().
			Str("task_arn", arn).
			Str("stop_code", string(task.StopCode)).
			Msg("task stopped")
	}
	return projectTask(task), nil
}

// buildOverrides resolves the entrypoint against the task definition. A
// null entrypoint means "run what the image declares" and skips the
// lookup entirely; an empty one clears the container command.
func (r *Runner) buildOverrides(ctx context.Context, body command.RunTaskBody) (*ecstypes.TaskOverride, error) {
	if body.Entrypoint == nil {
		return nil, nil
	}
	def, err := r.ecs.DescribeTaskDefinition(ctx, body.TaskDefinition)
	if err != nil {
		return nil, err
	}
	if def == nil || len(def.ContainerDefinitions) == 0 {
		return nil, fmt.Errorf("task definition %s carries no containers", body.TaskDefinition)
	}

	names := make([]string, 0, len(def.ContainerDefinitions))
	for _, container := range def.ContainerDefinitions {
		names = append(names, aws.ToString(container.Name))
	}
	if body.ContainerName != "" {
		found := false
		for _, name := range names {
			if name == body.ContainerName {
				found = true
				break
			}
		}
		if !found {
			return nil, command.Errorf(command.CodeInvalidRequest,
				"container %q not found in task definition %s", body.ContainerName, body.TaskDefinition)
		}
		names = []string{body.ContainerName}
	}

	containerOverrides := make([]ecstypes.ContainerOverride, 0, len(names))
	for _, name := range names {
		containerOverrides = append(containerOverrides, ecstypes.ContainerOverride{
			Name:    aws.String(name),
			Command: body.Entrypoint,
		})
	}
	return &ecstypes.TaskOverride{ContainerOverrides: containerOverrides}, nil
}

// networkConfiguration builds the awsvpc block from deploy-time settings.
// Fargate tasks cannot start without one; EC2 launches may leave it out.
func (r *Runner) networkConfiguration() *ecstypes.NetworkConfiguration {
	if len(r.cfg.Subnets) == 0 {
		return nil
	}
	assign := ecstypes.AssignPublicIpDisabled
	if r.cfg.AssignPublicIP {
		assign = ecstypes.AssignPublicIpEnabled
	}
	return &ecstypes.NetworkConfiguration{
		AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
			Subnets:        r.cfg.Subnets,
			SecurityGroups: r.cfg.SecurityGroups,
			AssignPublicIp: assign,
		},
	}
}

// awaitStopped blocks until the task leaves the cluster's running set,
// then fetches its final state.
func (r *Runner) awaitStopped(ctx context.Context, cluster, taskArn string) (*ecstypes.Task, error) {
	if err := r.ecs.WaitTasksStopped(ctx, cluster, []string{taskArn}, r.cfg.WaitTimeout); err != nil {
		return nil, err
	}
	tasks, failures, err := r.ecs.DescribeTasks(ctx, cluster, []string{taskArn})
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		failure := failures[0]
		return nil, fmt.Errorf("describe stopped task: %w", &awsapi.FailureError{
			Arn:    aws.ToString(failure.Arn),
			Reason: aws.ToString(failure.Reason),
			Detail: aws.ToString(failure.Detail),
		})
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("stopped task %s vanished from the cluster", taskArn)
	}
	return &tasks[0], nil
}

// projectTask mirrors the task fields a caller can act on.
func projectTask(task *ecstypes.Task) *command.RunTaskResult {
	return &command.RunTaskResult{
		TaskArn:           aws.ToString(task.TaskArn),
		TaskDefinitionArn: aws.ToString(task.TaskDefinitionArn),
		ClusterArn:        aws.ToString(task.ClusterArn),
		StartedBy:         aws.ToString(task.StartedBy),
		LastStatus:        aws.ToString(task.LastStatus),
		StopCode:          string(task.StopCode),
		StoppedReason:     aws.ToString(task.StoppedReason),
		Containers:        health.ContainerStatuses(task.Containers),
	}
}
