package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-appointments/internal/config"
	redisclient "github.com/hackgods/medical-appointments/internal/redis"
)

const (
	EventAppointmentScheduled   = "APPOINTMENT_SCHEDULED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventNoteAdded              = "NOTE_ADDED"
	EventNoteEdited             = "NOTE_EDITED"
	EventReminderSent           = "REMINDER_SENT"
)

// MaxDurationMin is the longest appointment that can be booked.
const MaxDurationMin = 480

// Text limits, matching the column sizes of the relational store.
const (
	maxNameLen      = 200
	maxEmailLen     = 200
	maxPhoneLen     = 20
	maxLicenseLen   = 50
	maxSpecialtyLen = 100
	maxTypeLen      = 100
)

var phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]+$`)

// Recorder receives operation outcomes. *metrics.Collector implements it.
type Recorder interface {
	RecordOperation(operation, outcome string, d time.Duration)
	RecordReminder(sent bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string, time.Duration) {}
func (noopRecorder) RecordReminder(bool) {}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	cfg      config.Config
	log      zerolog.Logger
	agenda   *agendaCache
	notifier Notifier
	rec      Recorder
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for "now" checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAgendaCache enables caching of doctor agendas for cfg.AgendaCacheTTL.
func WithAgendaCache(c redisclient.Cache) Option {
	return func(s *Service) {
		if c != nil && s.cfg.AgendaCacheTTL > 0 {
			s.agenda = newAgendaCache(c, s.cfg.AgendaCacheTTL)
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.rec = r }
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Service{
		repo:     repo,
		locker:   locker,
		cfg:      cfg,
		log:      logger.With().Str("component", "appointment").Logger(),
		rec:      noopRecorder{},
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.log)
	}

	return s
}

// Location is the time zone used for agenda day boundaries.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

func (s *Service) observe(operation string, started time.Time, err *error) {
	s.rec.RecordOperation(operation, Outcome(*err), time.Since(started))
}

// withDoctorLock runs fn while holding the doctor's scheduling lock.
func (s *Service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithDoctorLock(ctx, doctorID, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		s.log.Warn().Str("doctor_id", doctorID.String()).Msg("doctor lock busy")
		return ErrDoctorBusy
	default:
		return persistence("doctor lock", err)
	}
}

func (s *Service) checkMaxLen(field, value string, max int) error {
	if err := s.validate.Var(value, fmt.Sprintf("max=%d", max)); err != nil {
		return invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func (s *Service) validateStart(start time.Time) error {
	if start.IsZero() {
		return invalid("start", "is required")
	}
	if !start.After(s.now()) {
		return invalid("start", "must be in the future")
	}
	return nil
}

// ScheduleAppointment books a new appointment for the patient with the
// doctor. The conflict check and the insert run under the doctor's lock,
// and the store rejects overlaps on its own as well.
func (s *Service) ScheduleAppointment(ctx context.Context, patientID, doctorID uuid.UUID, start time.Time, durationMin int, apptType string) (_ *Appointment, err error) {
	defer s.observe("schedule", time.Now(), &err)

	apptType = strings.TrimSpace(apptType)
	if err := s.validateStart(start); err != nil {
		return nil, err
	}
	if durationMin <= 0 || durationMin > MaxDurationMin {
		return nil, invalid("duration_min", "must be between 1 and 480")
	}
	if apptType == "" {
		return nil, invalid("type", "must not be empty")
	}
	if err := s.checkMaxLen("type", apptType, maxTypeLen); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, persistence("load patient", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, persistence("load doctor", err)
	}

	appt := &Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		Start:       start.UTC(),
		DurationMin: durationMin,
		Status:      StatusScheduled,
		Type:        apptType,
	}

	err = s.withDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		existing, err := s.repo.ListScheduledForDoctor(lockCtx, doctorID, appt.Start, appt.End())
		if err != nil {
			return persistence("list doctor appointments", err)
		}
		if clash, found := FindConflict(doctorID, appt.Window(), existing, uuid.Nil); found {
			s.log.Warn().
				Str("doctor_id", doctorID.String()).
				Str("conflicts_with", clash.ID.String()).
				Time("start", appt.Start).
				Msg("schedule rejected")
			return ErrSchedulingConflict
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return persistence("create appointment", err)
		}

		s.logEvent(lockCtx, appt.ID, EventAppointmentScheduled, map[string]any{
			"patient_id":   patientID.String(),
			"doctor_id":    doctorID.String(),
			"start":        appt.Start,
			"duration_min": durationMin,
			"type":         apptType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAgenda(ctx, doctorID, appt.Start)
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).
		Msg("appointment scheduled")

	return appt, nil
}

// RescheduleAppointment moves a scheduled appointment to newStart, keeping
// its duration.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart time.Time) (_ *Appointment, err error) {
	defer s.observe("reschedule", time.Now(), &err)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, persistence("load appointment", err)
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}
	if err := s.validateStart(newStart); err != nil {
		return nil, err
	}
	newStart = newStart.UTC()
	oldStart := appt.Start

	var updated *Appointment
	err = s.withDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		current, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return persistence("reload appointment", err)
		}

		target := NewWindow(newStart, current.DurationMin)
		others, err := s.repo.ListScheduledForDoctor(lockCtx, current.DoctorID, target.Start, target.End)
		if err != nil {
			return persistence("list doctor appointments", err)
		}
		if err := current.Reschedule(newStart, others); err != nil {
			return err
		}

		updated, err = s.repo.UpdateAppointmentStart(lockCtx, id, newStart)
		if errors.Is(err, ErrAppointmentNotFound) {
			// cancelled after the reload
			return ErrInvalidTransition
		}
		if err != nil {
			return persistence("update appointment start", err)
		}

		s.logEvent(lockCtx, id, EventAppointmentRescheduled, map[string]any{
			"from": oldStart,
			"to":   newStart,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAgenda(ctx, appt.DoctorID, oldStart, newStart)
	s.log.Info().
		Str("appointment_id", id.String()).
		Time("from", oldStart).
		Time("to", newStart).
		Msg("appointment rescheduled")

	return updated, nil
}

// CancelAppointment moves a scheduled appointment to cancelled. The row is
// kept for reports. Cancelling never creates an overlap, so it does not
// take the doctor lock.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (_ *Appointment, err error) {
	defer s.observe("cancel", time.Now(), &err)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, persistence("load appointment", err)
	}
	if err := appt.Cancel(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusScheduled, StatusCancelled)
	if errors.Is(err, ErrAppointmentNotFound) {
		// lost the race with another cancel
		return nil, ErrAlreadyCancelled
	}
	if err != nil {
		return nil, persistence("cancel appointment", err)
	}

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{})
	s.invalidateAgenda(ctx, updated.DoctorID, updated.Start)
	s.log.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")

	return updated, nil
}

// AddClinicalNote records a note on the appointment and appends it to the
// patient's history in one store operation. Allowed in every status.
func (s *Service) AddClinicalNote(ctx context.Context, appointmentID, authorDoctorID uuid.UUID, body, diagnosis string) (_ *Note, err error) {
	defer s.observe("add_note", time.Now(), &err)

	if strings.TrimSpace(body) == "" {
		return nil, invalid("body", "must not be empty")
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, persistence("load appointment", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, authorDoctorID); err != nil {
		return nil, persistence("load author", err)
	}

	note := appt.NewNote(authorDoctorID, body, diagnosis, s.now().UTC())
	if err := s.repo.InsertNote(ctx, &note); err != nil {
		return nil, persistence("insert note", err)
	}

	s.logEvent(ctx, appointmentID, EventNoteAdded, map[string]any{
		"note_id":   note.ID.String(),
		"author_id": authorDoctorID.String(),
	})
	s.invalidateAgenda(ctx, appt.DoctorID, appt.Start)

	return &note, nil
}

// EditNoteBody replaces a note's body. Nothing else on a note changes.
func (s *Service) EditNoteBody(ctx context.Context, noteID uuid.UUID, body string) (_ *Note, err error) {
	defer s.observe("edit_note", time.Now(), &err)

	note, err := s.repo.GetNoteByID(ctx, noteID)
	if err != nil {
		return nil, persistence("load note", err)
	}
	if err := note.EditBody(body, s.now().UTC()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateNoteBody(ctx, noteID, note.Body, note.UpdatedAt)
	if err != nil {
		return nil, persistence("update note", err)
	}

	if updated.AppointmentID != nil {
		s.logEvent(ctx, *updated.AppointmentID, EventNoteEdited, map[string]any{
			"note_id": noteID.String(),
		})
	}

	return updated, nil
}

// GetAppointment returns the appointment with its patient, doctor and notes.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, persistence("get appointment", err)
	}
	patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		return nil, persistence("get appointment patient", err)
	}
	doctor, err := s.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, persistence("get appointment doctor", err)
	}
	notes, err := s.repo.ListNotesByAppointment(ctx, id)
	if err != nil {
		return nil, persistence("list appointment notes", err)
	}
	if notes == nil {
		notes = []Note{}
	}

	return &AppointmentDetail{
		Appointment: *appt,
		Patient:     patient,
		Doctor:      doctor,
		Notes:       notes,
	}, nil
}

// ListAppointments returns appointments ordered by start. A zero filter
// lists everything.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, invalid("to", "must not be before from")
	}

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, persistence("list appointments", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

// DoctorAgenda lists every appointment of the doctor starting on the given
// day in the service's location, cancelled ones included.
func (s *Service) DoctorAgenda(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Appointment, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, persistence("load doctor", err)
	}

	dayStart := s.dayStart(day)
	key := dayStart.Format(time.DateOnly)

	cached, gen, hit, canStore := s.agenda.lookup(ctx, doctorID, key)
	if hit {
		return cached, nil
	}

	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		DoctorID: &doctorID,
		From:     dayStart,
		To:       dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, persistence("load agenda", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}

	if canStore {
		if err := s.agenda.put(ctx, doctorID, key, gen, appts); err != nil {
			s.log.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("agenda cache write failed")
		}
	}
	return appts, nil
}

// PatientHistory returns the patient's notes in insertion order.
func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID) ([]Note, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, persistence("load patient", err)
	}

	notes, err := s.repo.ListNotesByPatient(ctx, patientID)
	if err != nil {
		return nil, persistence("list patient notes", err)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

func (s *Service) dayStart(t time.Time) time.Time {
	y, m, d := t.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

func (s *Service) invalidateAgenda(ctx context.Context, doctorID uuid.UUID, starts ...time.Time) {
	days := make([]string, 0, len(starts))
	for _, t := range starts {
		days = append(days, s.dayStart(t).Format(time.DateOnly))
	}
	if err := s.agenda.invalidate(ctx, doctorID, days...); err != nil {
		s.log.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("agenda cache invalidation failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().
			Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
