// Where: internal/manager/manager.go
// What: Command dispatcher: decode, route, classify, envelope.
// Why: An invocation always returns a structured response, never a fault.
package manager

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/logging"
)

// Deployer rolls services onto new task definition revisions.
type Deployer interface {
	Run(ctx context.Context, body command.DeployBody) ([]command.ServiceResult, error)
}

// TaskRunner starts one-off tasks.
type TaskRunner interface {
	Run(ctx context.Context, body command.RunTaskBody) (*command.RunTaskResult, error)
}

// HealthChecker reports task state for a service or family.
type HealthChecker interface {
	Run(ctx context.Context, body command.HealthcheckBody) (*command.HealthcheckResult, error)
}

// Handler routes decoded commands to their implementations.
type Handler struct {
	deployer Deployer
	runner   TaskRunner
	checker  HealthChecker
	log      zerolog.Logger
}

// New returns a Handler dispatching to the given command implementations.
func New(deployer Deployer, runner TaskRunner, checker HealthChecker, logger zerolog.Logger) *Handler {
	return &Handler{deployer: deployer, runner: runner, checker: checker, log: logger}
}

// Handle processes one invocation payload. The error return is always
// nil: decode failures, command errors, and panics all fold into the
// response envelope so the invocation itself never faults.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (resp command.Response, err error) {
	logger := h.log
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logging.WithRequestID(logger, lc.AwsRequestID)
	}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("command handler panicked")
			resp = command.Fail(command.Errorf(command.CodeInternal, "internal error: %v", rec))
			err = nil
		}
	}()

	req, decodeErr := command.Decode(raw)
	if decodeErr != nil {
		logger.Warn().Err(decodeErr).Msg("rejected invocation payload")
		return command.Fail(decodeErr), nil
	}
	logger = logger.With().Str("command", req.Command).Logger()
	// Decode succeeded, so raw is well-formed and safe to embed.
	logger.Info().RawJSON("payload", raw).Msg("command received")

	data, cmdErr := h.dispatch(ctx, req)
	elapsed := time.Since(start)
	if cmdErr != nil {
		classified := command.WrapError(awsapi.Classify(cmdErr), cmdErr)
		logger.Error().
			Err(cmdErr).
			Str("error_code", string(classified.Code)).
			Dur("duration", elapsed).
			Msg("command failed")
		return command.Fail(classified), nil
	}
	logger.Info().Dur("duration", elapsed).Msg("command completed")
	return command.OK(data), nil
}

// dispatch runs the command implementation for a decoded request.
// Decode guarantees the body matching the command name is present.
func (h *Handler) dispatch(ctx context.Context, req *command.Request) (any, error) {
	switch req.Command {
	case command.CommandDeploy:
		return h.deployer.Run(ctx, *req.Deploy)
	case command.CommandRunTask:
		return h.runner.Run(ctx, *req.RunTask)
	case command.CommandHealthcheck:
		return h.checker.Run(ctx, *req.Healthcheck)
	}
	return nil, command.Errorf(command.CodeUnrecognizedCommand, "unrecognized command %q", req.Command)
}
