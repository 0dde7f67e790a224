// Where: internal/command/envelope_test.go
// What: Wire contract tests for response field presence.
// Why: Invokers parse these bytes; which keys appear is part of the contract.
package command

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestContainerStatusKeepsExitCodeExplicit(t *testing.T) {
	out, err := json.Marshal(ContainerStatus{Name: "app"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// A container that never ran reports null, not zero and not absence.
	if !strings.Contains(string(out), `"exitCode":null`) {
		t.Fatalf("exit code coerced or dropped: %s", out)
	}

	code := int32(0)
	out, err = json.Marshal(ContainerStatus{Name: "app", ExitCode: &code})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"exitCode":0`) {
		t.Fatalf("zero exit code lost: %s", out)
	}
}

func TestServiceResultOmitsFailureFieldsOnSuccess(t *testing.T) {
	out, err := json.Marshal(ServiceResult{ServiceID: "web", Status: StatusOK, Revision: "12"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, absent := range []string{`"error"`, `"message"`} {
		if strings.Contains(string(out), absent) {
			t.Fatalf("success entry carries %s: %s", absent, out)
		}
	}
	if !strings.Contains(string(out), `"status":"ok"`) || !strings.Contains(string(out), `"revision":"12"`) {
		t.Fatalf("unexpected success entry: %s", out)
	}

	out, err = json.Marshal(ServiceResult{
		ServiceID: "worker",
		Status:    StatusError,
		Error:     CodeResourceNotFound,
		Message:   "service worker not found",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"error":"ResourceNotFound"`) || strings.Contains(string(out), `"revision"`) {
		t.Fatalf("unexpected failure entry: %s", out)
	}
}

func TestTaskReportAlwaysCarriesFailuresKey(t *testing.T) {
	out, err := json.Marshal(TaskReport{TaskArn: "arn:task/1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"failures"`) {
		t.Fatalf("failures key dropped: %s", out)
	}
}
