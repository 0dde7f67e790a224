// Where: internal/health/health.go
// What: Task status reporting for a cluster, filtered by service or family.
// Why: Operators read task state through the manager without console access.
package health

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
)

// describeTasksLimit is the most ARNs one DescribeTasks call accepts.
// The report is a snapshot, so anything beyond it is cut, not paged.
const describeTasksLimit = 100

// ECSAPI is the slice of the orchestration plane a health check reads.
// *awsapi.ECS satisfies it.
type ECSAPI interface {
	ListTasks(ctx context.Context, filter awsapi.TaskFilter) ([]string, error)
	DescribeTasks(ctx context.Context, cluster string, taskArns []string) ([]ecstypes.Task, []ecstypes.Failure, error)
}

type Checker struct {
	ecs ECSAPI
	log zerolog.Logger
}

func New(ecsAPI ECSAPI, logger zerolog.Logger) *Checker {
	return &Checker{ecs: ecsAPI, log: logger}
}

// Run lists running and stopped tasks matching the filters and projects
// them into the response shape. Stopped tasks are listed explicitly
// because ECS drops them from the default listing shortly after exit.
func (c *Checker) Run(ctx context.Context, body command.HealthcheckBody) (*command.HealthcheckResult, error) {
	filter := awsapi.TaskFilter{
		Cluster: body.ClusterID,
		Service: body.ServiceName,
		Family:  body.TaskDefinitionFamily,
	}

	seen := make(map[string]struct{})
	var taskArns []string
	for _, desired := range []ecstypes.DesiredStatus{ecstypes.DesiredStatusRunning, ecstypes.DesiredStatusStopped} {
		filter.DesiredStatus = desired
		arns, err := c.ecs.ListTasks(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, arn := range arns {
			if _, ok := seen[arn]; ok {
				continue
			}
			seen[arn] = struct{}{}
			taskArns = append(taskArns, arn)
		}
	}

	// Stable output whatever order the two listings returned.
	sort.Strings(taskArns)
	if len(taskArns) > describeTasksLimit {
		c.log.Warn().
			Int("matched", len(taskArns)).
			Int("reported", describeTasksLimit).
			Msg("task report truncated")
		taskArns = taskArns[:describeTasksLimit]
	}

	result := &command.HealthcheckResult{Tasks: make([]command.TaskReport, 0, len(taskArns))}
	if len(taskArns) == 0 {
		c.log.Info().Str("cluster", body.ClusterID).Msg("no tasks matched the filters")
		return result, nil
	}

	tasks, failures, err := c.ecs.DescribeTasks(ctx, body.ClusterID, taskArns)
	if err != nil {
		return nil, err
	}

	reported := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		result.Tasks = append(result.Tasks, projectTask(task, failures))
		reported[aws.ToString(task.TaskArn)] = struct{}{}
	}
	// ARNs the describe could not resolve still get an entry so the
	// caller sees every task it asked about.
	for _, failure := range failures {
		arn := aws.ToString(failure.Arn)
		if _, ok := reported[arn]; ok {
			continue
		}
		result.Tasks = append(result.Tasks, command.TaskReport{
			TaskArn:  arn,
			Failures: []string{failureReason(failure)},
		})
	}
	return result, nil
}

// projectTask copies task state into the response without coercing
// types: absent exit codes stay null, timestamps stay timestamps.
func projectTask(task ecstypes.Task, failures []ecstypes.Failure) command.TaskReport {
	report := command.TaskReport{
		TaskArn:            aws.ToString(task.TaskArn),
		TaskDefinitionArn:  aws.ToString(task.TaskDefinitionArn),
		Connectivity:       string(task.Connectivity),
		HealthStatus:       string(task.HealthStatus),
		DesiredStatus:      aws.ToString(task.DesiredStatus),
		LastStatus:         aws.ToString(task.LastStatus),
		StartedAt:          task.StartedAt,
		StopCode:           string(task.StopCode),
		StoppedReason:      aws.ToString(task.StoppedReason),
		ExecutionStoppedAt: task.ExecutionStoppedAt,
		Containers:         ContainerStatuses(task.Containers),
	}
	for _, failure := range failures {
		if aws.ToString(failure.Arn) == report.TaskArn {
			report.Failures = append(report.Failures, failureReason(failure))
		}
	}
	return report
}

// ContainerStatuses projects container state for task reports. Shared
// with the one-off task runner, which reports the same shape after a
// wait.
func ContainerStatuses(containers []ecstypes.Container) []command.ContainerStatus {
	if len(containers) == 0 {
		return nil
	}
	out := make([]command.ContainerStatus, 0, len(containers))
	for _, container := range containers {
		out = append(out, command.ContainerStatus{
			ContainerArn: aws.ToString(container.ContainerArn),
			Name:         aws.ToString(container.Name),
			Image:        aws.ToString(container.Image),
			LastStatus:   aws.ToString(container.LastStatus),
			ExitCode:     container.ExitCode,
			Reason:       aws.ToString(container.Reason),
			HealthStatus: string(container.HealthStatus),
		})
	}
	return out
}

func failureReason(failure ecstypes.Failure) string {
	reason := aws.ToString(failure.Reason)
	if detail := aws.ToString(failure.Detail); detail != "" {
		return reason + ": " + detail
	}
	return reason
}
