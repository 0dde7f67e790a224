// Where: internal/deploy/deploy.go
// What: Batch redeploy of ECS services onto fresh task definition revisions.
// Why: Each service's pipeline runs and fails on its own; the batch never aborts.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/logging"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/taskdef"
)

// ECSAPI is the slice of the orchestration plane a deploy touches.
// *awsapi.ECS satisfies it.
type ECSAPI interface {
	DescribeService(ctx context.Context, cluster, service string) (*ecstypes.Service, error)
	DescribeTaskDefinition(ctx context.Context, ref string) (*ecstypes.TaskDefinition, error)
	RegisterTaskDefinition(ctx context.Context, input *ecs.RegisterTaskDefinitionInput) (*ecstypes.TaskDefinition, error)
	UpdateService(ctx context.Context, cluster, service, taskDef string) error
}

// SecretSource resolves secret patterns to container secret entries.
// *secrets.Resolver satisfies it.
type SecretSource interface {
	Resolve(ctx context.Context, patterns []string) ([]ecstypes.Secret, error)
}

// Options tunes a Deployer.
type Options struct {
	// WorkerLimit caps how many services deploy concurrently. Values
	// below one deploy sequentially.
	WorkerLimit int
	Logger      zerolog.Logger
}

type Deployer struct {
	ecs     ECSAPI
	secrets SecretSource
	limit   int
	log     zerolog.Logger
}

func New(ecsAPI ECSAPI, source SecretSource, opts Options) *Deployer {
	limit := opts.WorkerLimit
	if limit < 1 {
		limit = 1
	}
	return &Deployer{
		ecs:     ecsAPI,
		secrets: source,
		limit:   limit,
		log:     opts.Logger,
	}
}

// Run redeploys every requested service and reports one result per
// service, in request order. A service named twice deploys once and
// reports once. The returned error is non-nil only for request-level
// problems caught before any service pipeline starts.
func (d *Deployer) Run(ctx context.Context, body command.DeployBody) ([]command.ServiceResult, error) {
	serviceIDs := uniqueServiceIDs(body.ServiceIDs)

	resolved, err := d.secrets.Resolve(ctx, body.Secrets)
	if err != nil {
		if command.CodeOf(err) == command.CodeInvalidRequest {
			return nil, err
		}
		// Secret resolution is shared by the whole batch, so a store
		// outage fails every service the same way.
		d.log.Error().Err(err).Msg("secret resolution failed")
		results := make([]command.ServiceResult, len(serviceIDs))
		for i, serviceID := range serviceIDs {
			results[i] = failedResult(serviceID, err)
		}
		return results, nil
	}
	if len(body.Secrets) > 0 {
		d.log.Info().Int("patterns", len(body.Secrets)).Int("resolved", len(resolved)).Msg("resolved secret patterns")
	}

	overrides := taskdef.Overrides{Image: body.Image, Secrets: resolved}

	results := make([]command.ServiceResult, len(serviceIDs))
	var group errgroup.Group
	group.SetLimit(d.limit)
	for i, serviceID := range serviceIDs {
		group.Go(func() error {
			results[i] = d.deployOne(ctx, body.ClusterID, serviceID, overrides)
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}

// uniqueServiceIDs keeps the first occurrence of each id in order.
func uniqueServiceIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// deployOne walks one service through describe, register, and update.
// The first failing step settles the result for this service only.
func (d *Deployer) deployOne(ctx context.Context, cluster, serviceID string, overrides taskdef.Overrides) command.ServiceResult {
	logger := logging.WithService(d.log, cluster, serviceID)
	started := time.Now()

	service, err := d.ecs.DescribeService(ctx, cluster, serviceID)
	if err != nil {
		return failedLoggedResult(logger, serviceID, err)
	}
	currentRef := aws.ToString(service.TaskDefinition)
	if currentRef == "" {
		return failedLoggedResult(logger, serviceID, fmt.Errorf("service %s has no task definition", serviceID))
	}

	current, err := d.ecs.DescribeTaskDefinition(ctx, currentRef)
	if err != nil {
		return failedLoggedResult(logger, serviceID, err)
	}

	input, err := taskdef.NewRevisionInput(current, overrides)
	if err != nil {
		return failedLoggedResult(logger, serviceID, err)
	}

	registered, err := d.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return failedLoggedResult(logger, serviceID, err)
	}
	newRef := ""
	if registered != nil {
		newRef = aws.ToString(registered.TaskDefinitionArn)
	}
	if newRef == "" {
		return failedLoggedResult(logger, serviceID, fmt.Errorf("register task definition %s: response carried no revision", currentRef))
	}

	if err := d.ecs.UpdateService(ctx, cluster, serviceID, newRef); err != nil {
		return failedLoggedResult(logger, serviceID, err)
	}

	logger.Info().
		Str("revision", newRef).
		Dur("duration", time.Since(started)).
		Msg("service deployed")
	return command.ServiceResult{
		ServiceID: serviceID,
		Status:    command.StatusOK,
		Revision:  newRef,
	}
}

func failedResult(serviceID string, err error) command.ServiceResult {
	return command.ServiceResult{
		ServiceID: serviceID,
		Status:    command.StatusError,
		Error:     awsapi.Classify(err),
		Message:   err.Error(),
	}
}

func failedLoggedResult(logger zerolog.Logger, serviceID string, err error) command.ServiceResult {
	logger.Error().Err(err).Msg("deploy failed")
	return failedResult(serviceID, err)
}
