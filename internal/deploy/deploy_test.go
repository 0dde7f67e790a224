// Where: internal/deploy/deploy_test.go
// What: Tests for per-service pipeline independence and batch results.
// Why: One broken service must never block or reorder the rest.
package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/awsapi"
	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
)

// fakeECS serves a cluster of services out of maps and records every
// register and update. Safe for concurrent pipelines. Keys are service
// names except defs, which is keyed by task definition ref.
type fakeECS struct {
	mu           sync.Mutex
	services     map[string]string
	defs         map[string]*ecstypes.TaskDefinition
	describeErrs map[string]error
	delay        map[string]time.Duration
	registered   []*ecs.RegisterTaskDefinitionInput
	updates      map[string]string
	inFlight     int
	peakInFlight int
	calls        int
}

func newFakeECS() *fakeECS {
	return &fakeECS{
		services:     map[string]string{},
		defs:         map[string]*ecstypes.TaskDefinition{},
		describeErrs: map[string]error{},
		delay:        map[string]time.Duration{},
		updates:      map[string]string{},
	}
}

func (f *fakeECS) addService(name, family string, containers ...ecstypes.ContainerDefinition) {
	ref := fmt.Sprintf("arn:aws:ecs:us-west-2:111:task-definition/%s:1", family)
	if len(containers) == 0 {
		containers = []ecstypes.ContainerDefinition{{
			Name:  aws.String("app"),
			Image: aws.String("repo/" + family + ":v1"),
		}}
	}
	f.services[name] = ref
	f.defs[ref] = &ecstypes.TaskDefinition{
		Family:               aws.String(family),
		TaskDefinitionArn:    aws.String(ref),
		Revision:             1,
		Status:               ecstypes.TaskDefinitionStatusActive,
		ContainerDefinitions: containers,
	}
}

func (f *fakeECS) DescribeService(_ context.Context, cluster, service string) (*ecstypes.Service, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.peakInFlight {
		f.peakInFlight = f.inFlight
	}
	wait := f.delay[service]
	f.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	f.mu.Lock()
	f.inFlight--
	err := f.describeErrs[service]
	ref, ok := f.services[service]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("describe service %s/%s: %w", cluster, service,
			&awsapi.FailureError{Arn: service, Reason: "MISSING"})
	}
	return &ecstypes.Service{
		ServiceName:    aws.String(service),
		TaskDefinition: aws.String(ref),
	}, nil
}

func (f *fakeECS) DescribeTaskDefinition(_ context.Context, ref string) (*ecstypes.TaskDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[ref]
	if !ok {
		return nil, fmt.Errorf("describe task definition %s: %w", ref,
			&awsapi.FailureError{Arn: ref, Reason: "MISSING"})
	}
	return def, nil
}

func (f *fakeECS) RegisterTaskDefinition(_ context.Context, input *ecs.RegisterTaskDefinitionInput) (*ecstypes.TaskDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, input)
	arn := fmt.Sprintf("arn:aws:ecs:us-west-2:111:task-definition/%s:2", aws.ToString(input.Family))
	return &ecstypes.TaskDefinition{
		Family:            input.Family,
		TaskDefinitionArn: aws.String(arn),
		Revision:          2,
	}, nil
}

func (f *fakeECS) UpdateService(_ context.Context, cluster, service, taskDef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[service] = taskDef
	return nil
}

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	out   []ecstypes.Secret
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, patterns []string) ([]ecstypes.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return f.out, nil
}

func newDeployer(ecsAPI ECSAPI, resolver SecretSource, limit int) *Deployer {
	return New(ecsAPI, resolver, Options{WorkerLimit: limit, Logger: zerolog.Nop()})
}

func TestRunDeploysEveryServiceInOrder(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web")
	ecsFake.addService("worker", "worker")

	results, err := newDeployer(ecsFake, &fakeResolver{}, 4).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web", "worker"},
		Image:      "repo/app:v2",
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("unexpected result count: %d", len(results))
	}
	for i, id := range []string{"web", "worker"} {
		if results[i].ServiceID != id {
			t.Fatalf("results out of request order: %#v", results)
		}
		if results[i].Status != command.StatusOK {
			t.Fatalf("service %s not deployed: %#v", id, results[i])
		}
		if !strings.Contains(results[i].Revision, ":2") {
			t.Fatalf("service %s missing new revision: %#v", id, results[i])
		}
	}
	if len(ecsFake.registered) != 2 {
		t.Fatalf("expected one register per service, got %d", len(ecsFake.registered))
	}
	for _, input := range ecsFake.registered {
		for _, container := range input.ContainerDefinitions {
			if aws.ToString(container.Image) != "repo/app:v2" {
				t.Fatalf("image override not applied: %#v", container)
			}
		}
	}
	if ecsFake.updates["web"] == "" || ecsFake.updates["worker"] == "" {
		t.Fatalf("services not updated: %#v", ecsFake.updates)
	}
}

func TestRunKeepsIndependentPipelines(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("a", "a")
	ecsFake.addService("c", "c")
	// "b" exists in no map: describe reports it missing.

	results, err := newDeployer(ecsFake, &fakeResolver{}, 2).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if results[0].Status != command.StatusOK || results[2].Status != command.StatusOK {
		t.Fatalf("healthy services affected by the broken one: %#v", results)
	}
	if results[1].ServiceID != "b" || results[1].Status != command.StatusError {
		t.Fatalf("broken service not reported: %#v", results[1])
	}
	if results[1].Error != command.CodeResourceNotFound || results[1].Message == "" {
		t.Fatalf("error entry missing detail: %#v", results[1])
	}
	if len(ecsFake.updates) != 2 {
		t.Fatalf("unexpected updates: %#v", ecsFake.updates)
	}
}

func TestRunRegistersEvenWhenNothingChanged(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web")

	results, err := newDeployer(ecsFake, &fakeResolver{}, 1).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if results[0].Status != command.StatusOK {
		t.Fatalf("unexpected result: %#v", results[0])
	}
	// No image, no secrets: the pipeline still registers a revision and
	// rolls the service.
	if len(ecsFake.registered) != 1 {
		t.Fatalf("no-op deploy skipped register: %d", len(ecsFake.registered))
	}
	if aws.ToString(ecsFake.registered[0].ContainerDefinitions[0].Image) != "repo/web:v1" {
		t.Fatalf("image changed without an override: %#v", ecsFake.registered[0].ContainerDefinitions[0])
	}
	if ecsFake.updates["web"] == "" {
		t.Fatal("no-op deploy skipped update")
	}
}

func TestRunResolvesSecretsOncePerBatch(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web")
	ecsFake.addService("worker", "worker")
	resolver := &fakeResolver{
		out: []ecstypes.Secret{
			{Name: aws.String("DB_URL"), ValueFrom: aws.String("/apps/prod/db_url")},
		},
	}

	_, err := newDeployer(ecsFake, resolver, 4).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web", "worker"},
		Secrets:    []string{"/apps/prod/.*"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if resolver.calls != 1 {
		t.Fatalf("resolver called %d times for one batch", resolver.calls)
	}
	for _, input := range ecsFake.registered {
		secrets := input.ContainerDefinitions[0].Secrets
		if len(secrets) != 1 || aws.ToString(secrets[0].Name) != "DB_URL" {
			t.Fatalf("secrets not replaced: %#v", secrets)
		}
	}
}

func TestRunWithoutPatternsLeavesSecretsAlone(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web", ecstypes.ContainerDefinition{
		Name:  aws.String("app"),
		Image: aws.String("repo/web:v1"),
		Secrets: []ecstypes.Secret{
			{Name: aws.String("KEPT"), ValueFrom: aws.String("/kept")},
		},
	})

	_, err := newDeployer(ecsFake, &fakeResolver{}, 1).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	secrets := ecsFake.registered[0].ContainerDefinitions[0].Secrets
	if len(secrets) != 1 || aws.ToString(secrets[0].Name) != "KEPT" {
		t.Fatalf("existing secrets lost without patterns: %#v", secrets)
	}
}

func TestRunDeduplicatesRepeatedServices(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web")
	ecsFake.addService("worker", "worker")

	results, err := newDeployer(ecsFake, &fakeResolver{}, 4).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web", "worker", "web", "web"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("duplicates not collapsed: %#v", results)
	}
	if results[0].ServiceID != "web" || results[1].ServiceID != "worker" {
		t.Fatalf("first-occurrence order lost: %#v", results)
	}
	if len(ecsFake.registered) != 2 {
		t.Fatalf("duplicate service deployed twice: %d registers", len(ecsFake.registered))
	}
}

func TestRunUnmatchedPatternsKeepSecrets(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web", ecstypes.ContainerDefinition{
		Name:  aws.String("app"),
		Image: aws.String("repo/web:v1"),
		Secrets: []ecstypes.Secret{
			{Name: aws.String("KEPT"), ValueFrom: aws.String("/apps/kept")},
		},
	})
	// Patterns were supplied but elected nothing: the new revision
	// keeps whatever secrets the old one had.
	resolver := &fakeResolver{out: nil}

	_, err := newDeployer(ecsFake, resolver, 1).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web"},
		Secrets:    []string{"/nothing/matches/.*"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	secrets := ecsFake.registered[0].ContainerDefinitions[0].Secrets
	if len(secrets) != 1 || aws.ToString(secrets[0].Name) != "KEPT" {
		t.Fatalf("existing secrets did not survive an empty election: %#v", secrets)
	}
}

func TestRunStoreOutageFailsEveryServiceWithoutECSCalls(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("web", "web")
	resolver := &fakeResolver{err: fmt.Errorf("describe parameters: %w", &timeoutError{})}

	results, err := newDeployer(ecsFake, resolver, 2).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web", "worker"},
		Secrets:    []string{"/apps/.*"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("unexpected result count: %d", len(results))
	}
	for _, result := range results {
		if result.Status != command.StatusError {
			t.Fatalf("service %s not failed: %#v", result.ServiceID, result)
		}
	}
	if ecsFake.calls != 0 {
		t.Fatalf("pipelines ran despite resolution failure: %d calls", ecsFake.calls)
	}
}

func TestRunInvalidPatternFailsWholeCommand(t *testing.T) {
	ecsFake := newFakeECS()
	resolver := &fakeResolver{err: command.Errorf(command.CodeInvalidRequest, "invalid secret pattern")}

	results, err := newDeployer(ecsFake, resolver, 2).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"web"},
		Secrets:    []string{"("},
	})
	if err == nil {
		t.Fatal("expected command-level error")
	}
	if command.CodeOf(err) != command.CodeInvalidRequest {
		t.Fatalf("unexpected code: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %#v", results)
	}
}

func TestRunHonorsWorkerLimit(t *testing.T) {
	ecsFake := newFakeECS()
	serviceIDs := make([]string, 6)
	for i := range serviceIDs {
		name := fmt.Sprintf("svc%d", i)
		serviceIDs[i] = name
		ecsFake.addService(name, name)
		ecsFake.delay[name] = 10 * time.Millisecond
	}

	_, err := newDeployer(ecsFake, &fakeResolver{}, 2).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: serviceIDs,
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if ecsFake.peakInFlight > 2 {
		t.Fatalf("worker limit exceeded: peak %d", ecsFake.peakInFlight)
	}
}

func TestRunResultsStayInRequestOrderUnderConcurrency(t *testing.T) {
	ecsFake := newFakeECS()
	ecsFake.addService("slow", "slow")
	ecsFake.addService("fast", "fast")
	ecsFake.delay["slow"] = 30 * time.Millisecond

	results, err := newDeployer(ecsFake, &fakeResolver{}, 2).Run(context.Background(), command.DeployBody{
		ClusterID:  "apps",
		ServiceIDs: []string{"slow", "fast"},
	})
	if err != nil {
		t.Fatalf("run deploy: %v", err)
	}
	if results[0].ServiceID != "slow" || results[1].ServiceID != "fast" {
		t.Fatalf("completion order leaked into results: %#v", results)
	}
}

// timeoutError stands in for a transport-level failure.
type timeoutError struct{}

func (*timeoutError) Error() string   { return "connection timed out" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }
