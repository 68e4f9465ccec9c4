package apperrors

import "errors"

// Error kinds. Every domain error below unwraps to exactly one of these,
// and the HTTP layer maps kinds onto status codes.
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Catalog and circulation errors
var (
	ErrBookNotFound         = newKind(ErrResourceNotFound, "book not found")
	ErrBookUnavailable      = newKind(ErrConflict, "book is unavailable")
	ErrBookAlreadyAvailable = newKind(ErrConflict, "book is already available")
	ErrBorrowLimitReached   = newKind(ErrLimitExceeded, "borrow limit reached")
	ErrNotBorrower          = newKind(ErrPermissionDenied, "you did not borrow this book")
	ErrISBNAlreadyExists    = newKind(ErrValidationFailed, "a book with this isbn already exists")
)

// User errors
var (
	ErrUserNotFound       = newKind(ErrResourceNotFound, "user not found")
	ErrUsernameExists     = newKind(ErrValidationFailed, "username already exists")
	ErrEmailAlreadyExists = newKind(ErrValidationFailed, "email already exists")
)

// kindError is a named sentinel that also matches its kind with errors.Is
type kindError struct {
	kind error
	msg  string
}

func newKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	// Field names the offending input for validation errors
	Field   string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithField records the input field the error refers to
func (e *CustomError) WithField(field string) *CustomError {
	e.Field = field
	return e
}

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return NewCustomError(ErrResourceNotFound, message)
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return NewCustomError(ErrConflict, message)
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return NewCustomError(ErrPermissionDenied, message)
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return NewCustomError(ErrBadRequest, message)
}

// NewValidationError creates a validation error bound to a single field
func NewValidationError(field, message string) error {
	return NewCustomError(ErrValidationFailed, message).WithField(field)
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// FieldOf extracts the offending field from a validation error, if any
func FieldOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// DetailsOf extracts structured details attached to err, if any
func DetailsOf(err error) map[string]interface{} {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Details
	}
	return nil
}
