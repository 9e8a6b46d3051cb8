package security

import "errors"

// Security domain errors.
var (
	ErrContainerNotFound = errors.New("protected container not found")
)

// InconsistentRequestError reports a permission mutation that would
// create unreachable data, e.g. granting dataset access to a role that
// cannot see the containing library. Callers render the message on a
// retry form rather than failing the request outright.
type InconsistentRequestError struct {
	Message string
}

// Error implements the error interface.
func (e *InconsistentRequestError) Error() string {
	return "inconsistent permission request: " + e.Message
}

// IsInconsistentRequest checks for an InconsistentRequestError.
func IsInconsistentRequest(err error) bool {
	var target *InconsistentRequestError
	return errors.As(err, &target)
}
