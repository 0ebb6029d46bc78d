package mms

import (
	"errors"
	"fmt"
)

// Category is the stable, caller-visible classification of a failure.
type Category string

const (
	// CategoryValidation indicates malformed input rejected before any store call.
	CategoryValidation Category = "Validation"

	// CategoryPermissionDenied indicates a permit condition did not hold.
	CategoryPermissionDenied Category = "PermissionDenied"

	// CategoryPreconditionFailed indicates a named require condition did not hold.
	CategoryPreconditionFailed Category = "PreconditionFailed"

	// CategoryConflict indicates a lock is held or the target changed underneath.
	CategoryConflict Category = "Conflict"

	// CategoryStoreFault indicates a transport or backend error talking to the store.
	CategoryStoreFault Category = "StoreFault"
)

// Reason refines a Category. Only PreconditionFailed and Conflict carry one.
type Reason string

const (
	ReasonAlreadyExists  Reason = "AlreadyExists"
	ReasonNotEmpty       Reason = "NotEmpty"
	ReasonStaleReference Reason = "StaleReference"
	ReasonNotFound       Reason = "NotFound"

	ReasonLockHeld     Reason = "LockHeld"
	ReasonStateChanged Reason = "StateChanged"
)

// Category returns the category a reason belongs to.
func (r Reason) Category() Category {
	switch r {
	case ReasonLockHeld, ReasonStateChanged:
		return CategoryConflict
	case "":
		return ""
	default:
		return CategoryPreconditionFailed
	}
}

// opaqueStoreMessage is the only text a caller ever sees for a store fault.
const opaqueStoreMessage = "The backing store could not complete the request."

// Error is the single error type returned across package boundaries.
//
// Exactly one Category and one Message are always set. Reason is set for
// PreconditionFailed and Conflict. Condition names the condition key whose
// failure produced the error, when there is one.
type Error struct {
	// Category is the stable classification.
	Category Category

	// Reason refines the category.
	Reason Reason

	// Message is the human-readable, condition-specific text.
	Message string

	// Condition is the key of the failed condition, if any.
	Condition string

	// Err is the underlying cause. Never rendered to callers for store faults.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	head := string(e.Category)
	if e.Reason != "" {
		head = fmt.Sprintf("%s(%s)", e.Category, e.Reason)
	}
	if e.Err != nil && e.Category == CategoryStoreFault {
		return fmt.Sprintf("%s: %s: %v", head, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a Validation error.
func NewValidationError(format string, args ...any) *Error {
	return &Error{
		Category: CategoryValidation,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewPermissionDenied creates a PermissionDenied error for a failed permit.
func NewPermissionDenied(condition, message string) *Error {
	return &Error{
		Category:  CategoryPermissionDenied,
		Condition: condition,
		Message:   message,
	}
}

// NewConditionError creates the error for a failed require condition. The
// category is derived from the reason.
func NewConditionError(reason Reason, condition, message string) *Error {
	return &Error{
		Category:  reason.Category(),
		Reason:    reason,
		Condition: condition,
		Message:   message,
	}
}

// NewStateChanged creates the Conflict returned when no condition failed but
// the expected committed shape was still absent.
func NewStateChanged(message string) *Error {
	return &Error{
		Category: CategoryConflict,
		Reason:   ReasonStateChanged,
		Message:  message,
	}
}

// NewStoreFault wraps a backend error. The cause is kept for logs only.
func NewStoreFault(err error) *Error {
	return &Error{
		Category: CategoryStoreFault,
		Message:  opaqueStoreMessage,
		Err:      err,
	}
}

// AsError extracts the *Error from err. Uses errors.As to handle wrapped errors.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CategoryOf returns the category of err, or StoreFault for foreign errors.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Category
	}
	return CategoryStoreFault
}

// ReasonOf returns the reason of err, or "" when it has none.
func ReasonOf(err error) Reason {
	if e, ok := AsError(err); ok {
		return e.Reason
	}
	return ""
}

// IsCategory returns true if err is an *Error of category c.
func IsCategory(err error, c Category) bool {
	e, ok := AsError(err)
	return ok && e.Category == c
}

// IsReason returns true if err is an *Error with reason r.
func IsReason(err error, r Reason) bool {
	e, ok := AsError(err)
	return ok && e.Reason == r
}

// PublicMessage returns the text safe to show to a caller.
func PublicMessage(err error) string {
	if e, ok := AsError(err); ok {
		return e.Message
	}
	return opaqueStoreMessage
}
