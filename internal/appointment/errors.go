package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrNoteNotFound        = fmt.Errorf("note %w", ErrNotFound)
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)

	ErrValidation         = errors.New("validation failed")
	ErrSchedulingConflict = errors.New("doctor already has an appointment in that window")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyCancelled   = errors.New("appointment is already cancelled")
	ErrPersistence        = errors.New("persistence failure")

	// ErrDoctorBusy means another scheduling call for the same doctor held
	// the lock for longer than the configured wait. Callers may retry.
	ErrDoctorBusy = errors.New("doctor schedule is being modified, please retry")
)

// ValidationError describes malformed input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Patient and doctor accounts keep their role; their profile rows depend on it.
var errNotStaffAccount = invalid("role", "only assistant and admin accounts can change role")

// persistence tags a store failure so callers can tell it apart from
// domain errors. Domain errors the store itself reports pass through.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSchedulingConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrDoctorBusy)
}

// Outcome classifies an operation result for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSchedulingConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrDoctorBusy):
		return "busy"
	default:
		return "error"
	}
}
