package api

import (
	"time"

	"github.com/hackgods/medical-appointments/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID   string    `json:"patient_id" validate:"required,uuid"`
	DoctorID    string    `json:"doctor_id" validate:"required,uuid"`
	Start       time.Time `json:"start" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"required,gt=0,lte=480"`
	Type        string    `json:"type" validate:"required"`
}

type RescheduleAppointmentRequest struct {
	Start time.Time `json:"start" validate:"required"`
}

type AddNoteRequest struct {
	AuthorDoctorID string `json:"author_doctor_id" validate:"required,uuid"`
	Body           string `json:"body" validate:"required"`
	Diagnosis      string `json:"diagnosis"`
}

type EditNoteRequest struct {
	Body string `json:"body" validate:"required"`
}

type RegisterPatientRequest struct {
	Name        string `json:"name" validate:"required,min=3"`
	Email       string `json:"email" validate:"required,email"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Phone       string `json:"phone"`
}

type RegisterDoctorRequest struct {
	Name          string `json:"name" validate:"required,min=3"`
	Email         string `json:"email" validate:"required,email"`
	LicenseNumber string `json:"license_number" validate:"required"`
	Specialty     string `json:"specialty" validate:"required"`
}

type RegisterStaffRequest struct {
	Name  string `json:"name" validate:"required,min=3"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=assistant admin"`
}

type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=assistant admin"`
}

type PatientListResponse struct {
	Count    int                   `json:"count"`
	Patients []appointment.Patient `json:"patients"`
}

type DoctorListResponse struct {
	Count   int                  `json:"count"`
	Doctors []appointment.Doctor `json:"doctors"`
}

type AccountListResponse struct {
	Count    int                   `json:"count"`
	Accounts []appointment.Account `json:"accounts"`
}

type AppointmentListResponse struct {
	Count        int                       `json:"count"`
	Appointments []appointment.Appointment `json:"appointments"`
}

type NoteListResponse struct {
	Count int                `json:"count"`
	Notes []appointment.Note `json:"notes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
