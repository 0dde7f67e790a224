// Where: internal/awsapi/errors.go
// What: Classification of AWS failures into the response taxonomy.
// Why: Retry and reporting decisions hang off error class, not message text.
package awsapi

import (
	"errors"
	"fmt"
	"strings"

	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/trussworks/terraform-aws-lambda-ecs-manager/internal/command"
)

// FailureError folds one entry of an ECS failures list into an error.
// ECS reports missing resources and placement problems this way instead
// of failing the whole API call.
type FailureError struct {
	Arn    string
	Reason string
	Detail string
}

func (e *FailureError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Arn, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Arn, e.Reason)
}

var throttleCodes = func() map[string]struct{} {
	codes := make(map[string]struct{}, len(awsretry.DefaultThrottleErrorCodes))
	for code := range awsretry.DefaultThrottleErrorCodes {
		codes[code] = struct{}{}
	}
	return codes
}()

// IsThrottle reports whether err is a rate-limit rejection. Only these
// failures are retried; everything else surfaces on the first attempt.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	_, ok := throttleCodes[apiErr.ErrorCode()]
	return ok
}

// IsNotFound reports whether err means a referenced cluster, service,
// task, parameter, or task definition does not exist.
func IsNotFound(err error) bool {
	var failure *FailureError
	if errors.As(err, &failure) {
		return strings.EqualFold(failure.Reason, "MISSING")
	}

	var clusterNotFound *ecstypes.ClusterNotFoundException
	var serviceNotFound *ecstypes.ServiceNotFoundException
	var badResourceID *ssmtypes.InvalidResourceId
	if errors.As(err, &clusterNotFound) || errors.As(err, &serviceNotFound) || errors.As(err, &badResourceID) {
		return true
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException", "ParameterNotFound", "NoSuchEntity":
		return true
	case "ClientException":
		// ECS reports an unknown task definition as a ClientException
		// rather than a modeled not-found type.
		return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "unable to describe task definition")
	}
	return false
}

// IsUnavailable reports whether err means the dependency could not do
// its job at all: throttled, faulted server-side, short on capacity,
// or unreachable.
func IsUnavailable(err error) bool {
	if IsThrottle(err) {
		return true
	}
	var failure *FailureError
	if errors.As(err, &failure) {
		// Non-MISSING failure reasons (RESOURCE:*, AGENT, ...) mean the
		// cluster could not place or reach the task right now.
		return !strings.EqualFold(failure.Reason, "MISSING")
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	// An operation error without a modeled API error means the request
	// never produced a service response (DNS, connect, TLS, canceled
	// context mid-call).
	var opErr *smithy.OperationError
	return errors.As(err, &opErr)
}

// Classify maps an AWS failure onto the response taxonomy. Errors that
// already carry a taxonomy code keep it.
func Classify(err error) command.Code {
	switch {
	case err == nil:
		return ""
	case command.CodeOf(err) != command.CodeInternal:
		return command.CodeOf(err)
	case IsNotFound(err):
		return command.CodeResourceNotFound
	case IsUnavailable(err):
		return command.CodeDependencyUnavailable
	default:
		return command.CodeInternal
	}
}
