package application

import "errors"

var (
	// ErrUnauthenticated is returned when no valid credential accompanies a request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write collides with existing state.
	ErrConflict = errors.New("application: conflict")
)

// RuleError attaches a caller facing reason to one of the sentinel errors above.
type RuleError struct {
	Kind   error
	Reason string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason == "" && e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Reason
}

// Unwrap exposes the sentinel kind to errors.Is.
func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func forbidden(reason string) error {
	return &RuleError{Kind: ErrForbidden, Reason: reason}
}

func notFound(reason string) error {
	return &RuleError{Kind: ErrNotFound, Reason: reason}
}

func conflict(reason string) error {
	return &RuleError{Kind: ErrConflict, Reason: reason}
}

// Reason returns the caller facing reason carried by err, or "" when none is set.
func Reason(err error) string {
	var rErr *RuleError
	if errors.As(err, &rErr) {
		return rErr.Reason
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return ""
}

// ValidationError captures request validation issues that callers can surface to users.
type ValidationError struct {
	// Message summarizes the first rule that failed.
	Message     string
	FieldErrors map[string]string
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	return "validation failed"
}

// HasErrors reports whether a message or any field level issue was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (v.Message != "" || len(v.FieldErrors) > 0)
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	if v.Message == "" {
		v.Message = other.Message
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
