package service

import (
	"errors"

	"github.com/construtiva/obratrack/internal/measurement/repository"
)

var (
	// ErrNotFound covers absent entities and cross-tenant access alike;
	// callers can never tell the two apart.
	ErrNotFound = repository.ErrNotFound

	// ErrPermission means the actor's role is insufficient.
	ErrPermission = errors.New("operation not permitted for this role")

	// ErrStateConflict means the bulletin's current status forbids the
	// operation. Includes invalid approval transitions.
	ErrStateConflict = errors.New("operation not allowed in current status")
)

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
