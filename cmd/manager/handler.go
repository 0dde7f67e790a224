// Where: cmd/manager/handler.go
// What: Handler dependency wiring.
// Why: Centralize construction for testability.
package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/config"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/deploy"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/health"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/logging"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/manager"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/runtask"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/secrets"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/version"
)

// buildHandler constructs the command handler and everything it calls:
// AWS clients, the secret resolver, and the three command
// implementations. Returns any initialization error.
func buildHandler(ctx context.Context) (*manager.Handler, error) {
	// A .env file is optional; deployed functions configure through the
	// function environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	startupLogger := logging.WithComponent("manager")
	startup := startupLogger.Info().Str("version", version.String())
	if cfg.AWS.Endpoint != "" {
		startup = startup.Str("endpoint", cfg.AWS.Endpoint)
	}
	startup.Msg("manager initialized")

	clients, err := awsapi.NewClients(ctx, awsapi.Options{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
		Retry: awsapi.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
	})
	if err != nil {
		return nil, err
	}

	resolver := secrets.NewResolver(clients.SSM)
	deployer := deploy.New(clients.ECS, resolver, deploy.Options{
		WorkerLimit: cfg.Deploy.WorkerLimit,
		Logger:      logging.WithComponent("deploy"),
	})
	runner := runtask.New(clients.ECS, cfg.RunTask, logging.WithComponent("runtask"))
	checker := health.New(clients.ECS, logging.WithComponent("healthcheck"))

	return manager.New(deployer, runner, checker, logging.WithComponent("manager")), nil
}
