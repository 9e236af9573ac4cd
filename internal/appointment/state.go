package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reschedule moves a scheduled appointment to newStart, keeping its
// duration. others is the doctor's current appointment set; the
// appointment itself may be part of it. On error the appointment is left
// untouched.
func (a *Appointment) Reschedule(newStart time.Time, others []Appointment) error {
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}

	candidate := NewWindow(newStart, a.DurationMin)
	if !IsFree(a.DoctorID, candidate, others, a.ID) {
		return ErrSchedulingConflict
	}

	a.Start = newStart
	return nil
}

// Cancel moves a scheduled appointment to the terminal cancelled state.
// A second cancel is an error, not a no-op.
func (a *Appointment) Cancel() error {
	switch a.Status {
	case StatusScheduled:
		a.Status = StatusCancelled
		return nil
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrInvalidTransition
	}
}

// NewNote builds a clinical note recorded during this appointment. Notes
// are accepted in every status. Identity and timestamp are always assigned
// here.
func (a *Appointment) NewNote(authorDoctorID uuid.UUID, body, diagnosis string, now time.Time) Note {
	apptID := a.ID
	n := Note{
		ID:             uuid.New(),
		PatientID:      a.PatientID,
		AppointmentID:  &apptID,
		AuthorDoctorID: authorDoctorID,
		Body:           body,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d := strings.TrimSpace(diagnosis); d != "" {
		n.Diagnosis = &d
	}
	return n
}

// EditBody replaces the note text; nothing else on a note is mutable.
func (n *Note) EditBody(body string, now time.Time) error {
	if strings.TrimSpace(body) == "" {
		return invalid("body", "must not be empty")
	}
	n.Body = body
	n.UpdatedAt = now
	return nil
}
