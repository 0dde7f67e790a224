// Where: internal/taskdef/revision.go
// What: Builds a register-ready task definition input from a described one.
// Why: ECS returns control-plane fields that must never be sent back on register.
package taskdef

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// ReadOnlyFields names the task definition fields owned by the ECS
// control plane. They exist on a described definition but are not
// registrable; everything else is copied verbatim into the next
// revision. Kept exported so the drift test can prove the two sets
// still cover the whole describe shape.
var ReadOnlyFields = []string{
	"Compatibilities",
	"DeregisteredAt",
	"RegisteredAt",
	"RegisteredBy",
	"RequiresAttributes",
	"Revision",
	"Status",
	"TaskDefinitionArn",
}

// Overrides carries the per-deploy mutations applied while building the
// next revision. The zero value reproduces the source definition
// unchanged.
type Overrides struct {
	// Image, when non-empty, replaces the image of every container.
	Image string
	// Secrets, when non-empty, replaces the secrets list of every
	// container. An empty mapping leaves container secrets untouched.
	Secrets []ecstypes.Secret
}

// NewRevisionInput projects a described task definition into the input
// that registers its next revision, applying the given overrides. The
// source definition is never mutated, and equal inputs produce equal
// outputs.
func NewRevisionInput(def *ecstypes.TaskDefinition, ov Overrides) (*ecs.RegisterTaskDefinitionInput, error) {
	if def == nil {
		return nil, fmt.Errorf("build revision input: task definition is nil")
	}
	if def.Family == nil || *def.Family == "" {
		return nil, fmt.Errorf("build revision input: task definition has no family")
	}
	if len(def.ContainerDefinitions) == 0 {
		return nil, fmt.Errorf("build revision input for family %s: no container definitions", *def.Family)
	}

	return &ecs.RegisterTaskDefinitionInput{
		ContainerDefinitions:    cloneContainers(def.ContainerDefinitions, ov),
		Family:                  def.Family,
		Cpu:                     def.Cpu,
		EphemeralStorage:        def.EphemeralStorage,
		ExecutionRoleArn:        def.ExecutionRoleArn,
		InferenceAccelerators:   def.InferenceAccelerators,
		IpcMode:                 def.IpcMode,
		Memory:                  def.Memory,
		NetworkMode:             def.NetworkMode,
		PidMode:                 def.PidMode,
		PlacementConstraints:    def.PlacementConstraints,
		ProxyConfiguration:      def.ProxyConfiguration,
		RequiresCompatibilities: def.RequiresCompatibilities,
		RuntimePlatform:         def.RuntimePlatform,
		TaskRoleArn:             def.TaskRoleArn,
		Volumes:                 def.Volumes,
	}, nil
}

// cloneContainers copies the container list so override writes never
// reach the described definition. Overrides apply uniformly: one image
// and one secrets list for every container in the task.
func cloneContainers(containers []ecstypes.ContainerDefinition, ov Overrides) []ecstypes.ContainerDefinition {
	cloned := make([]ecstypes.ContainerDefinition, len(containers))
	for i, container := range containers {
		cloned[i] = container
		if ov.Image != "" {
			cloned[i].Image = aws.String(ov.Image)
		}
		if len(ov.Secrets) > 0 {
			secrets := make([]ecstypes.Secret, len(ov.Secrets))
			copy(secrets, ov.Secrets)
			cloned[i].Secrets = secrets
		}
	}
	return cloned
}
