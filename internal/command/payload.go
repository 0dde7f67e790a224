// Where: internal/command/payload.go
// What: Invocation payload model and strict decoding into typed bodies.
// Why: Every command is validated before any orchestration call runs.
package command

import (
	"encoding/json"
	"strings"
)

// Command names accepted in the payload envelope.
const (
	CommandDeploy      = "deploy"
	CommandRunTask     = "runtask"
	CommandHealthcheck = "healthcheck"
)

// Payload is the raw invocation shape: a command name plus a
// command-specific body object.
type Payload struct {
	Command string          `json:"command"`
	Body    json.RawMessage `json:"body"`
}

// DeployBody selects services for a rolling redeploy and carries the
// optional image and secret-pattern overrides applied to each new
// task definition revision.
type DeployBody struct {
	ClusterID  string   `json:"cluster_id"`
	ServiceIDs []string `json:"service_ids"`
	Image      string   `json:"image,omitempty"`
	Secrets    []string `json:"secrets,omitempty"`
}

// RunTaskBody launches a one-off task from an existing task definition.
// A nil Entrypoint runs the definition unmodified; a non-nil one is
// applied as a per-run command override.
type RunTaskBody struct {
	ClusterID      string   `json:"cluster_id"`
	TaskDefinition string   `json:"task_definition"`
	Entrypoint     []string `json:"entrypoint,omitempty"`
	ContainerName  string   `json:"container_name,omitempty"`
	Wait           bool     `json:"wait,omitempty"`
}

// HealthcheckBody reports task health for a cluster, narrowed by a
// service name, a task definition family, or both.
type HealthcheckBody struct {
	ClusterID            string `json:"cluster_id"`
	ServiceName          string `json:"service_name,omitempty"`
	TaskDefinitionFamily string `json:"task_definition_family,omitempty"`
}

// Request is a decoded, schema-validated payload. Exactly one body
// field is non-nil, matching Command.
type Request struct {
	Command     string
	Deploy      *DeployBody
	RunTask     *RunTaskBody
	Healthcheck *HealthcheckBody
}

// Decode parses and validates a raw invocation payload. All failures
// are taxonomy errors: missing or malformed fields yield
// CodeInvalidRequest, an unknown command name yields
// CodeUnrecognizedCommand.
func Decode(raw []byte) (*Request, error) {
	if len(raw) == 0 {
		return nil, Errorf(CodeInvalidRequest, "empty payload")
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, Errorf(CodeInvalidRequest, "payload is not a json object: %v", err)
	}
	if missing := missingPayloadFields(payload); len(missing) > 0 {
		return nil, Errorf(CodeInvalidRequest, "required field(s) not found: %s", strings.Join(missing, ", "))
	}

	schema, ok := bodySchema(payload.Command)
	if !ok {
		return nil, Errorf(CodeUnrecognizedCommand, "unrecognized command %q, must be one of: %s, %s, %s",
			payload.Command, CommandDeploy, CommandRunTask, CommandHealthcheck)
	}
	if err := validateBody(schema, payload.Body); err != nil {
		return nil, err
	}

	req := &Request{Command: payload.Command}
	switch payload.Command {
	case CommandDeploy:
		req.Deploy = &DeployBody{}
		if err := json.Unmarshal(payload.Body, req.Deploy); err != nil {
			return nil, Errorf(CodeInvalidRequest, "decode deploy body: %v", err)
		}
	case CommandRunTask:
		req.RunTask = &RunTaskBody{}
		if err := json.Unmarshal(payload.Body, req.RunTask); err != nil {
			return nil, Errorf(CodeInvalidRequest, "decode runtask body: %v", err)
		}
	case CommandHealthcheck:
		req.Healthcheck = &HealthcheckBody{}
		if err := json.Unmarshal(payload.Body, req.Healthcheck); err != nil {
			return nil, Errorf(CodeInvalidRequest, "decode healthcheck body: %v", err)
		}
	}
	return req, nil
}

func missingPayloadFields(p Payload) []string {
	var missing []string
	if p.Command == "" {
		missing = append(missing, "command")
	}
	if len(p.Body) == 0 || string(p.Body) == "null" {
		missing = append(missing, "body")
	}
	return missing
}
