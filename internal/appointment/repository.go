package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service.
// Implementations must make each method atomic and must reject a scheduled
// appointment that overlaps another scheduled appointment of the same
// doctor with ErrSchedulingConflict, independent of any caller-side check.
type Repository interface {
	// Directory
	CreateAccount(ctx context.Context, a *Account) error
	CreatePatient(ctx context.Context, p *Patient) error // account and patient in one unit
	CreateDoctor(ctx context.Context, d *Doctor) error   // account and doctor in one unit
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// Lists are in registration order. An empty role lists every account.
	ListPatients(ctx context.Context) ([]Patient, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListAccounts(ctx context.Context, role Role) ([]Account, error)
	// UpdateStaffRole changes the role of an assistant or admin account.
	// Any other account yields a ValidationError on role.
	UpdateStaffRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error)

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// For conflict checks: the doctor's scheduled appointments overlapping [from, to).
	ListScheduledForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// Ordered by start ascending, then id.
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error
	// Only applies while the appointment is scheduled, otherwise ErrAppointmentNotFound.
	UpdateAppointmentStart(ctx context.Context, id uuid.UUID, start time.Time) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Notes. InsertNote appends to the patient's history and links the
	// appointment in a single unit.
	InsertNote(ctx context.Context, n *Note) error
	GetNoteByID(ctx context.Context, id uuid.UUID) (*Note, error)
	UpdateNoteBody(ctx context.Context, id uuid.UUID, body string, at time.Time) (*Note, error)
	ListNotesByPatient(ctx context.Context, patientID uuid.UUID) ([]Note, error)
	ListNotesByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Note, error)

	// Reminders
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// ClaimReminder stamps reminder_sent_at on a scheduled, unreminded
	// appointment and reports whether this caller won it.
	ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseReminder undoes a claim made at the given time.
	ReleaseReminder(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
