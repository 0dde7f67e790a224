// Where: internal/command/envelope.go
// What: Response envelope and per-command result shapes.
// Why: Every invocation returns one uniform {status, data} object.
package command

import "time"

// Status is the envelope-level outcome of an invocation.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the single wire shape returned to the invoker. Data
// holds the command result on success and a Failure on error.
type Response struct {
	Status Status `json:"status"`
	Data   any    `json:"data"`
}

// Failure is the error payload carried by an error-status envelope.
type Failure struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// OK wraps a command result in a success envelope.
func OK(data any) Response {
	return Response{Status: StatusOK, Data: data}
}

// Fail wraps an error in an error envelope, classifying untyped errors
// as internal.
func Fail(err error) Response {
	cmdErr := WrapError(CodeInternal, err)
	return Response{Status: StatusError, Data: Failure{Error: cmdErr.Code, Message: cmdErr.Message}}
}

// ServiceResult is one deploy outcome entry. A batch response carries
// one entry per requested service, in request order, regardless of how
// many failed; Status uses the same ok/error values as the envelope.
type ServiceResult struct {
	ServiceID string `json:"service_id"`
	Status    Status `json:"status"`
	Revision  string `json:"revision,omitempty"`
	Error     Code   `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RunTaskResult identifies a launched one-off task. The stop fields
// are populated only when the caller asked to wait for completion.
type RunTaskResult struct {
	TaskArn           string            `json:"taskArn"`
	TaskDefinitionArn string            `json:"taskDefinitionArn,omitempty"`
	ClusterArn        string            `json:"clusterArn,omitempty"`
	StartedBy         string            `json:"startedBy,omitempty"`
	LastStatus        string            `json:"lastStatus,omitempty"`
	StopCode          string            `json:"stopCode,omitempty"`
	StoppedReason     string            `json:"stoppedReason,omitempty"`
	Containers        []ContainerStatus `json:"containers,omitempty"`
}

// HealthcheckResult lists task status reports for the matched tasks.
// Tasks is always present, empty when nothing matched the filters.
type HealthcheckResult struct {
	Tasks []TaskReport `json:"tasks"`
}

// TaskReport projects one ECS task into the health response. Field
// names and types mirror the ECS task shape so nothing is coerced.
type TaskReport struct {
	TaskArn            string            `json:"taskArn"`
	TaskDefinitionArn  string            `json:"taskDefinitionArn,omitempty"`
	Connectivity       string            `json:"connectivity,omitempty"`
	HealthStatus       string            `json:"healthStatus,omitempty"`
	DesiredStatus      string            `json:"desiredStatus,omitempty"`
	LastStatus         string            `json:"lastStatus,omitempty"`
	StartedAt          *time.Time        `json:"startedAt,omitempty"`
	StopCode           string            `json:"stopCode,omitempty"`
	StoppedReason      string            `json:"stoppedReason,omitempty"`
	ExecutionStoppedAt *time.Time        `json:"executionStoppedAt,omitempty"`
	Containers         []ContainerStatus `json:"containers,omitempty"`
	Failures           []string          `json:"failures"`
}

// ContainerStatus projects one container within a task. ExitCode stays
// a nullable number: a container that never ran reports null, not zero.
type ContainerStatus struct {
	ContainerArn string `json:"containerArn,omitempty"`
	Name         string `json:"name,omitempty"`
	Image        string `json:"image,omitempty"`
	LastStatus   string `json:"lastStatus,omitempty"`
	ExitCode     *int32 `json:"exitCode"`
	Reason       string `json:"reason,omitempty"`
	HealthStatus string `json:"healthStatus,omitempty"`
}
