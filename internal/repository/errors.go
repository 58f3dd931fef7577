package repository

import "errors"

// NotFoundError is an error type for when a resource is not found.
type NotFoundError struct {
	message string
}

// Error returns the error message.
func (e NotFoundError) Error() string {
	return e.message
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nfe NotFoundError
	return errors.As(err, &nfe)
}
