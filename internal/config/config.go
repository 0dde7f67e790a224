// Where: internal/config/config.go
// What: Runtime configuration from defaults, optional YAML file, and env.
// Why: The deployment supplies tuning through the function environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration. Load applies
// defaults first, then the optional config file, then environment
// overrides, so the environment always has the last word.
type Config struct {
	LogLevel   string
	LogConsole bool
	AWS        AWSConfig
	Deploy     DeployConfig
	Retry      RetryConfig
	RunTask    RunTaskConfig
}

// AWSConfig selects region and, for local stacks, an endpoint override.
type AWSConfig struct {
	Region   string
	Endpoint string
}

// DeployConfig tunes the deploy fan-out.
type DeployConfig struct {
	// WorkerLimit caps concurrently deploying services in one batch.
	WorkerLimit int
}

// RetryConfig bounds throttle retries on individual AWS calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RunTaskConfig supplies the launch parameters a one-off task needs
// that its payload does not carry.
type RunTaskConfig struct {
	LaunchType     string
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
	StartedBy      string
	WaitTimeout    time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Deploy:   DeployConfig{WorkerLimit: 4},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		RunTask: RunTaskConfig{
			StartedBy:   "lambda",
			WaitTimeout: 10 * time.Minute,
		},
	}
}

// Load resolves the effective configuration for this invocation
// environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors Config with optional fields so the file only
// overrides what it mentions. Durations are written as strings like
// "200ms" or "10m".
type fileConfig struct {
	LogLevel   string `yaml:"log_level,omitempty"`
	LogConsole *bool  `yaml:"log_console,omitempty"`
	AWS        struct {
		Region   string `yaml:"region,omitempty"`
		Endpoint string `yaml:"endpoint,omitempty"`
	} `yaml:"aws,omitempty"`
	Deploy struct {
		WorkerLimit *int `yaml:"worker_limit,omitempty"`
	} `yaml:"deploy,omitempty"`
	Retry struct {
		MaxAttempts *int   `yaml:"max_attempts,omitempty"`
		BaseDelay   string `yaml:"base_delay,omitempty"`
		MaxDelay    string `yaml:"max_delay,omitempty"`
	} `yaml:"retry,omitempty"`
	RunTask struct {
		LaunchType     string   `yaml:"launch_type,omitempty"`
		Subnets        []string `yaml:"subnets,omitempty"`
		SecurityGroups []string `yaml:"security_groups,omitempty"`
		AssignPublicIP *bool    `yaml:"assign_public_ip,omitempty"`
		StartedBy      string   `yaml:"started_by,omitempty"`
		WaitTimeout    string   `yaml:"wait_timeout,omitempty"`
	} `yaml:"run_task,omitempty"`
}

func applyFile(cfg *Config, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogConsole != nil {
		cfg.LogConsole = *file.LogConsole
	}
	if file.AWS.Region != "" {
		cfg.AWS.Region = file.AWS.Region
	}
	if file.AWS.Endpoint != "" {
		cfg.AWS.Endpoint = file.AWS.Endpoint
	}
	if file.Deploy.WorkerLimit != nil {
		cfg.Deploy.WorkerLimit = *file.Deploy.WorkerLimit
	}
	if file.Retry.MaxAttempts != nil {
		cfg.Retry.MaxAttempts = *file.Retry.MaxAttempts
	}
	if err := setDuration(&cfg.Retry.BaseDelay, file.Retry.BaseDelay, "retry.base_delay"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Retry.MaxDelay, file.Retry.MaxDelay, "retry.max_delay"); err != nil {
		return err
	}
	if file.RunTask.LaunchType != "" {
		cfg.RunTask.LaunchType = file.RunTask.LaunchType
	}
	if len(file.RunTask.Subnets) > 0 {
		cfg.RunTask.Subnets = file.RunTask.Subnets
	}
	if len(file.RunTask.SecurityGroups) > 0 {
		cfg.RunTask.SecurityGroups = file.RunTask.SecurityGroups
	}
	if file.RunTask.AssignPublicIP != nil {
		cfg.RunTask.AssignPublicIP = *file.RunTask.AssignPublicIP
	}
	if file.RunTask.StartedBy != "" {
		cfg.RunTask.StartedBy = file.RunTask.StartedBy
	}
	if err := setDuration(&cfg.RunTask.WaitTimeout, file.RunTask.WaitTimeout, "run_task.wait_timeout"); err != nil {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value := os.Getenv(EnvLogLevel); value != "" {
		cfg.LogLevel = value
	}
	if err := setBoolEnv(&cfg.LogConsole, EnvLogConsole); err != nil {
		return err
	}
	if value := os.Getenv(EnvAWSRegion); value != "" {
		cfg.AWS.Region = value
	}
	if value := os.Getenv(EnvAWSEndpoint); value != "" {
		cfg.AWS.Endpoint = value
	}
	if err := setIntEnv(&cfg.Deploy.WorkerLimit, EnvWorkerLimit); err != nil {
		return err
	}
	if err := setIntEnv(&cfg.Retry.MaxAttempts, EnvRetryMaxAttempts); err != nil {
		return err
	}
	if err := setDurationEnv(&cfg.Retry.BaseDelay, EnvRetryBaseDelay); err != nil {
		return err
	}
	if err := setDurationEnv(&cfg.Retry.MaxDelay, EnvRetryMaxDelay); err != nil {
		return err
	}
	if value := os.Getenv(EnvRunTaskLaunchType); value != "" {
		cfg.RunTask.LaunchType = value
	}
	if value := os.Getenv(EnvRunTaskSubnets); value != "" {
		cfg.RunTask.Subnets = splitList(value)
	}
	if value := os.Getenv(EnvRunTaskSecurityGroups); value != "" {
		cfg.RunTask.SecurityGroups = splitList(value)
	}
	if err := setBoolEnv(&cfg.RunTask.AssignPublicIP, EnvRunTaskAssignPublicIP); err != nil {
		return err
	}
	if value := os.Getenv(EnvRunTaskStartedBy); value != "" {
		cfg.RunTask.StartedBy = value
	}
	if err := setDurationEnv(&cfg.RunTask.WaitTimeout, EnvRunTaskWaitTimeout); err != nil {
		return err
	}
	return nil
}

func setDuration(target *time.Duration, value, key string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func setDurationEnv(target *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func setIntEnv(target *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func setBoolEnv(target *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

// splitList parses a comma-separated environment value, trimming
// whitespace and dropping empty entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
