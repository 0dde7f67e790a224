// Where: internal/secrets/resolver.go
// What: Resolves secret patterns into container secret entries via SSM tags.
// Why: Deploys opt parameters in by tag, never by hardcoded lists.
package secrets

import (
	"context"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
)

// EnvVarTagKey is the parameter tag that both elects a parameter into
// container secrets and names the environment variable it populates.
// Parameters without it are never injected, whatever their name.
const EnvVarTagKey = "ENV_VAR_NAME"

// ParameterStore is the slice of the parameter store the resolver
// reads. *awsapi.SSM satisfies it.
type ParameterStore interface {
	DescribeParameters(ctx context.Context) ([]ssmtypes.ParameterMetadata, error)
	ListTagsForParameter(ctx context.Context, name string) ([]ssmtypes.Tag, error)
}

type Resolver struct {
	store ParameterStore
}

func NewResolver(store ParameterStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve matches parameter names against the given patterns and maps
// each tagged match to a container secret entry. An empty pattern list
// resolves to nothing without touching the store. The result is sorted
// by environment variable name, and when two parameters claim the same
// variable the lexicographically last parameter name wins.
func (r *Resolver) Resolve(ctx context.Context, patterns []string) ([]ecstypes.Secret, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	parameters, err := r.store.DescribeParameters(ctx)
	if err != nil {
		return nil, err
	}

	matched := matchNames(parameters, compiled)

	byEnvName := make(map[string]string)
	for _, name := range matched {
		tags, err := r.store.ListTagsForParameter(ctx, name)
		if err != nil {
			return nil, err
		}
		envName, ok := envVarName(tags)
		if !ok {
			// Matched but untagged: not elected, not an error.
			continue
		}
		byEnvName[envName] = name
	}

	return toSecrets(byEnvName), nil
}

// compilePatterns validates each pattern as written, then anchors it so
// matching covers the whole parameter name, not a substring.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, command.Errorf(command.CodeInvalidRequest, "invalid secret pattern %q: %v", pattern, err)
		}
		anchored, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
		if err != nil {
			return nil, command.Errorf(command.CodeInvalidRequest, "invalid secret pattern %q: %v", pattern, err)
		}
		compiled = append(compiled, anchored)
	}
	return compiled, nil
}

// matchNames returns the parameter names matching any pattern, sorted
// so tag lookups and conflict resolution run in a stable order.
func matchNames(parameters []ssmtypes.ParameterMetadata, patterns []*regexp.Regexp) []string {
	var matched []string
	for _, parameter := range parameters {
		name := aws.ToString(parameter.Name)
		if name == "" {
			continue
		}
		for _, pattern := range patterns {
			if pattern.MatchString(name) {
				matched = append(matched, name)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

func envVarName(tags []ssmtypes.Tag) (string, bool) {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == EnvVarTagKey && aws.ToString(tag.Value) != "" {
			return aws.ToString(tag.Value), true
		}
	}
	return "", false
}

func toSecrets(byEnvName map[string]string) []ecstypes.Secret {
	if len(byEnvName) == 0 {
		return nil
	}
	names := make([]string, 0, len(byEnvName))
	for name := range byEnvName {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]ecstypes.Secret, 0, len(names))
	for _, name := range names {
		result = append(result, ecstypes.Secret{
			Name:      aws.String(name),
			ValueFrom: aws.String(byEnvName[name]),
		})
	}
	return result
}
