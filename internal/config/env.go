// Where: internal/config/env.go
// What: Environment variable naming constants.
// Why: Centralize environment variable names to avoid typos and inconsistencies.
package config

const (
	// Bootstrap
	EnvConfigFile = "MANAGER_CONFIG_FILE"

	// Logging
	EnvLogLevel   = "MANAGER_LOG_LEVEL"
	EnvLogConsole = "MANAGER_LOG_CONSOLE"

	// AWS Configuration
	EnvAWSRegion   = "MANAGER_AWS_REGION"
	EnvAWSEndpoint = "MANAGER_AWS_ENDPOINT"

	// Deploy Configuration
	EnvWorkerLimit = "MANAGER_WORKER_LIMIT"

	// Retry Configuration
	EnvRetryMaxAttempts = "MANAGER_RETRY_MAX_ATTEMPTS"
	EnvRetryBaseDelay   = "MANAGER_RETRY_BASE_DELAY"
	EnvRetryMaxDelay    = "MANAGER_RETRY_MAX_DELAY"

	// RunTask Configuration
	EnvRunTaskLaunchType     = "MANAGER_RUNTASK_LAUNCH_TYPE"
	EnvRunTaskSubnets        = "MANAGER_RUNTASK_SUBNETS"
	EnvRunTaskSecurityGroups = "MANAGER_RUNTASK_SECURITY_GROUPS"
	EnvRunTaskAssignPublicIP = "MANAGER_RUNTASK_ASSIGN_PUBLIC_IP"
	EnvRunTaskStartedBy      = "MANAGER_RUNTASK_STARTED_BY"
	EnvRunTaskWaitTimeout    = "MANAGER_RUNTASK_WAIT_TIMEOUT"
)
