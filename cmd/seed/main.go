package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-appointments/internal/app"
	"github.com/hackgods/medical-appointments/internal/appointment"
	"github.com/hackgods/medical-appointments/internal/config"
	"github.com/hackgods/medical-appointments/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var appointmentTypes = []string{"consultation", "follow-up", "checkup", "procedure"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json", "seed").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "seed")

	if cfg.StoreDriver != config.StoreDriverPostgres {
		logger.Fatal().Msg("seed requires STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	doctorCount := getInt("SEED_DOCTORS", 50)
	patientCount := getInt("SEED_PATIENTS", 2000)
	perDoctor := getInt("SEED_APPOINTMENTS_PER_DOCTOR", 10)

	logger.Info().Int("doctors", doctorCount).Int("patients", patientCount).Msg("seed starting")

	doctors := seedDoctors(ctx, a.Service, doctorCount, logger)
	patients := seedPatients(ctx, a.Service, patientCount, logger)
	booked := seedAppointments(ctx, a.Service, doctors, patients, perDoctor, logger)

	logger.Info().
		Int("doctors", len(doctors)).
		Int("patients", len(patients)).
		Int("appointments", booked).
		Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *appointment.Service, count int, logger zerolog.Logger) []uuid.UUID {
	ids := make([]uuid.UUID, 0, count)

	for i := 0; i < count; i++ {
		d, err := svc.RegisterDoctor(ctx, appointment.RegisterDoctorInput{
			Name:          "Dr. " + gofakeit.Name(),
			Email:         gofakeit.Email(),
			LicenseNumber: "CRM-" + strconv.Itoa(100000+gofakeit.Number(0, 899999)),
			Specialty:     specialties[gofakeit.Number(0, len(specialties)-1)],
		})
		if err != nil {
			// duplicate fake email or license; skip it
			logger.Debug().Err(err).Msg("skipping doctor")
			continue
		}
		ids = append(ids, d.ID)
	}

	logger.Info().Int("count", len(ids)).Msg("doctors seeded")
	return ids
}

func seedPatients(ctx context.Context, svc *appointment.Service, count int, logger zerolog.Logger) []uuid.UUID {
	ids := make([]uuid.UUID, 0, count)
	oldest := time.Now().AddDate(-90, 0, 0)
	youngest := time.Now().AddDate(-1, 0, 0)

	for i := 0; i < count; i++ {
		p, err := svc.RegisterPatient(ctx, appointment.RegisterPatientInput{
			Name:        gofakeit.Name(),
			Email:       gofakeit.Email(),
			DateOfBirth: gofakeit.DateRange(oldest, youngest),
			Phone:       gofakeit.Phone(),
		})
		if err != nil {
			logger.Debug().Err(err).Msg("skipping patient")
			continue
		}
		ids = append(ids, p.ID)

		if (i+1)%500 == 0 {
			logger.Info().Int("seeded", i+1).Int("of", count).Msg("patients progress")
		}
	}

	logger.Info().Int("count", len(ids)).Msg("patients seeded")
	return ids
}

// seedAppointments books random half-hour aligned visits over the next two
// weeks. Conflicts are expected and skipped.
func seedAppointments(ctx context.Context, svc *appointment.Service, doctors, patients []uuid.UUID, perDoctor int, logger zerolog.Logger) int {
	if len(patients) == 0 {
		return 0
	}

	base := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	booked := 0

	for _, doctorID := range doctors {
		for i := 0; i < perDoctor; i++ {
			day := base.AddDate(0, 0, gofakeit.Number(0, 13))
			start := day.Add(time.Duration(16+gofakeit.Number(0, 17)) * 30 * time.Minute)
			duration := []int{15, 30, 45, 60}[gofakeit.Number(0, 3)]

			_, err := svc.ScheduleAppointment(ctx,
				patients[gofakeit.Number(0, len(patients)-1)],
				doctorID,
				start,
				duration,
				appointmentTypes[gofakeit.Number(0, len(appointmentTypes)-1)],
			)
			if errors.Is(err, appointment.ErrSchedulingConflict) {
				continue
			}
			if err != nil {
				logger.Warn().Err(err).Msg("booking failed")
				continue
			}
			booked++
		}
	}

	return booked
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
