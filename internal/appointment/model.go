package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleAssistant Role = "assistant"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAssistant, RoleAdmin:
		return true
	}
	return false
}

// Account is the identity shared by every person in the system. Patients
// and doctors reference it by AccountID.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Patient struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Account     Account   `json:"account"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Doctor struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Account       Account   `json:"account"`
	LicenseNumber string    `json:"license_number"`
	Specialty     string    `json:"specialty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	PatientID      uuid.UUID         `json:"patient_id"`
	DoctorID       uuid.UUID         `json:"doctor_id"`
	Start          time.Time         `json:"start"`
	DurationMin    int               `json:"duration_min"`
	Status         AppointmentStatus `json:"status"`
	Type           string            `json:"type"`
	ReminderSentAt *time.Time        `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// End is the exclusive end of the appointment's window.
func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMin) * time.Minute)
}

func (a Appointment) Window() Window {
	return Window{Start: a.Start, End: a.End()}
}

// Note is a clinical note. Only Body may change after creation.
type Note struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	AuthorDoctorID uuid.UUID  `json:"author_doctor_id"`
	Body           string     `json:"body"`
	Diagnosis      *string    `json:"diagnosis,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient *Patient `json:"patient"`
	Doctor  *Doctor  `json:"doctor"`
	Notes   []Note   `json:"notes"`
}

// AppointmentFilter selects appointments for listing and reports. Zero
// values mean "no bound".
type AppointmentFilter struct {
	DoctorID *uuid.UUID
	Status   *AppointmentStatus
	From     time.Time // inclusive lower bound on start
	To       time.Time // inclusive upper bound on start
}
