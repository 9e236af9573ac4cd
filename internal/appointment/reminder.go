package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Reminder is what a Notifier receives for one upcoming appointment.
type Reminder struct {
	Appointment Appointment
	Patient     Patient
	Doctor      Doctor
}

type Notifier interface {
	NotifyReminder(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the log instead of an outbound channel.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) NotifyReminder(ctx context.Context, r Reminder) error {
	n.log.Info().
		Str("appointment_id", r.Appointment.ID.String()).
		Str("to", r.Patient.Account.Email).
		Str("doctor", r.Doctor.Account.Name).
		Time("start", r.Appointment.Start).
		Msg("appointment reminder")
	return nil
}

// DispatchReminders notifies patients of scheduled appointments starting in
// (now, now+lead] that were not reminded yet. A failed reminder is logged
// and retried on the next run; it never fails the whole batch.
func (s *Service) DispatchReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now().UTC()

	due, err := s.repo.FindDueReminders(ctx, now, now.Add(lead))
	if err != nil {
		return 0, persistence("find due reminders", err)
	}

	sent := 0
	for _, appt := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		err := s.sendReminder(ctx, appt, now)
		if errors.Is(err, errReminderNotClaimed) {
			s.log.Debug().Str("appointment_id", appt.ID.String()).Msg("reminder skipped")
			continue
		}
		if err != nil {
			s.rec.RecordReminder(false)
			s.log.Error().
				Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("reminder failed")
			continue
		}

		s.rec.RecordReminder(true)
		sent++
	}

	return sent, nil
}

// errReminderNotClaimed means the appointment was cancelled, moved or
// reminded by someone else after it was found due.
var errReminderNotClaimed = errors.New("reminder no longer due")

// sendReminder claims the appointment before notifying, so a cancellation
// that lands after FindDueReminders stops the reminder. A failed
// notification releases the claim for the next run.
func (s *Service) sendReminder(ctx context.Context, appt Appointment, now time.Time) error {
	claimed, err := s.repo.ClaimReminder(ctx, appt.ID, now)
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if !claimed {
		return errReminderNotClaimed
	}

	if err := s.notify(ctx, appt); err != nil {
		if relErr := s.repo.ReleaseReminder(ctx, appt.ID, now); relErr != nil {
			s.log.Error().Err(relErr).Str("appointment_id", appt.ID.String()).Msg("release reminder claim")
		}
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, appt Appointment) error {
	patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return fmt.Errorf("load doctor: %w", err)
	}

	if err := s.notifier.NotifyReminder(ctx, Reminder{
		Appointment: appt,
		Patient:     *patient,
		Doctor:      *doctor,
	}); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventReminderSent, map[string]any{
		"to": patient.Account.Email,
	})
	return nil
}
