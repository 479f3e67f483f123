package errors

import (
	"errors"
	"fmt"
)

// Failure taxonomy returned at the service boundary. Callers match with Is
// and the transport layer maps them to status codes via Kind.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Resource errors
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
)

var kinds = []error{
	ErrInvalidCredentials,
	ErrInvalidToken,
	ErrSessionExpired,
	ErrUnauthorized,
	ErrForbidden,
	ErrConflict,
	ErrNotFound,
	ErrBadRequest,
	ErrStoreUnavailable,
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Newf returns a failure of the given kind with a caller facing message.
// The message comes first so Error() reads "email already registered: conflict".
func Newf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Unavailable marks a store failure as ErrStoreUnavailable while keeping the cause.
func Unavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Kind returns the taxonomy sentinel that err matches, or nil when err is
// not one of them.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
