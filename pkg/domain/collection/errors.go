package collection

import "errors"

// Collection domain errors.
var (
	ErrCollectionNotFound = errors.New("dataset collection not found")
	ErrElementNotFound    = errors.New("collection element not found")
)

// StructureError reports an invalid collection structure: a malformed
// type descriptor, elements that do not match the declared type's shape,
// or an identifier path that resolves to nothing. Construction fails
// fast rather than producing a malformed tree.
type StructureError struct {
	Message string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	return "invalid collection structure: " + e.Message
}

// IsStructureError checks for a StructureError.
func IsStructureError(err error) bool {
	var target *StructureError
	return errors.As(err, &target)
}
