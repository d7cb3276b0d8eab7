// Package minter implements the BCID allocation core: code validation,
// membership gating, the insert-with-token allocation protocol, and the
// read-only resolver.
package minter

import (
	"errors"
	"fmt"
)

// InvalidCodeReason identifies which validation rule a code violated.
type InvalidCodeReason string

const (
	// ReasonLength means the code is not 4-6 characters long.
	ReasonLength InvalidCodeReason = "length"
	// ReasonCharset means the code contains non-alphanumeric characters.
	ReasonCharset InvalidCodeReason = "charset"
)

// InvalidCodeError reports a syntactically invalid code. It is returned
// before any store access is attempted.
type InvalidCodeError struct {
	Code   string
	Reason InvalidCodeReason
}

func (e *InvalidCodeError) Error() string {
	switch e.Reason {
	case ReasonLength:
		return fmt.Sprintf("code %q must be between 4 and 6 characters long", e.Code)
	case ReasonCharset:
		return fmt.Sprintf("code %q contains invalid characters", e.Code)
	}
	return fmt.Sprintf("code %q is invalid", e.Code)
}

var (
	// ErrDuplicateCode means the (code, project) pair already exists.
	ErrDuplicateCode = errors.New("code already exists in this project")

	// ErrUnauthorized means the membership or ownership check failed. The
	// same error is returned whether or not the target exists, so callers
	// cannot probe for existence.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound means no row matched a code, identifier, or token lookup.
	ErrNotFound = errors.New("not found")
)
