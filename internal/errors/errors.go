package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard session client
var (
	// Identity service errors
	ErrNetwork         = errors.New("identity service unreachable")
	ErrInvalidResponse = errors.New("login response invalid")
	ErrUnauthorized    = errors.New("invalid session")
	ErrUserBlocked     = errors.New("user is blocked")

	// Session errors
	ErrSuperseded    = errors.New("operation superseded")
	ErrNoCredentials = errors.New("phone and otp are required")
	ErrNoSession     = errors.New("no session")

	// Navigation errors
	ErrUnknownSection    = errors.New("unknown section")
	ErrNoSubmenu         = errors.New("section has no submenu")
	ErrUnknownSubSection = errors.New("unknown sub section")
	ErrSubmenuCollapsed  = errors.New("submenu is collapsed")

	// Storage errors
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
