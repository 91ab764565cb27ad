package provision

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// PreconditionError means a resource exists but is unusable for deployment
// (inactive service, account without a default VPC). Never retried — fixing
// it requires manual intervention.
type PreconditionError struct {
	Resource string
	Reason   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

// ErrNoDefaultNetwork is returned when the account has no default VPC.
var ErrNoDefaultNetwork = &PreconditionError{
	Resource: "default vpc",
	Reason:   "account has no default VPC; create one or configure networking manually",
}

// errorCode extracts the AWS API error code, or "" for non-API errors.
func errorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// hasErrorCode reports whether err carries one of the given AWS error codes.
// Only a specific not-found code may drive a create branch; any other error
// must propagate unmodified.
func hasErrorCode(err error, codes ...string) bool {
	got := errorCode(err)
	if got == "" {
		return false
	}
	for _, code := range codes {
		if got == code {
			return true
		}
	}
	return false
}
