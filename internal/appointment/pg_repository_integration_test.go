//go:build integration

package appointment

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hackgods/medical-appointments/internal/config"
	"github.com/hackgods/medical-appointments/internal/db"
	redisclient "github.com/hackgods/medical-appointments/internal/redis"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func startPostgres(ctx context.Context) (*pgxpool.Pool, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "clinic_test",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("get postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("get postgres port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://test:testpass@%s:%s/clinic_test?sslmode=disable", host, port.Port())
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		terminate()
		return nil, nil, err
	}

	if _, err := db.NewMigrator(pool).Up(ctx); err != nil {
		pool.Close()
		terminate()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

func pgFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewPgRepository(testPool)
	svc := newTestService(repo, redisclient.NewLocalLocker(5*time.Second))
	f := &fixture{svc: svc}

	suffix := uuid.NewString()[:8]
	f.patient = f.registerPatient(t, "patient-"+suffix+"@example.com")
	f.doctor = f.registerDoctor(t, "CRM-"+suffix)
	return f
}

func TestPgRepository_ScheduleAndFetch(t *testing.T) {
	f := pgFixture(t)
	ctx := context.Background()

	created := f.schedule(t, at(10, 0), 30)

	got, err := f.svc.GetAppointment(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, at(10, 0).Equal(got.Start))
	assert.Equal(t, 30, got.DurationMin)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, f.doctor.LicenseNumber, got.Doctor.LicenseNumber)
	assert.Equal(t, f.patient.Account.Email, got.Patient.Account.Email)

	_, err = f.svc.ScheduleAppointment(ctx, f.patient.ID, f.doctor.ID, at(10, 15), 30, "consultation")
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	f.schedule(t, at(10, 30), 30)
}

func TestPgRepository_ExclusionConstraint(t *testing.T) {
	f := pgFixture(t)
	repo := NewPgRepository(testPool)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := &Appointment{
				ID:          uuid.New(),
				PatientID:   f.patient.ID,
				DoctorID:    f.doctor.ID,
				Start:       at(14, i),
				DurationMin: 30,
				Status:      StatusScheduled,
				Type:        "consultation",
			}
			errs[i] = repo.CreateAppointment(ctx, a)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrSchedulingConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestPgRepository_CancelRescheduleAndNotes(t *testing.T) {
	f := pgFixture(t)
	ctx := context.Background()

	x := f.schedule(t, at(9, 0), 30)
	y := f.schedule(t, at(11, 0), 30)

	_, err := f.svc.RescheduleAppointment(ctx, x.ID, at(11, 15))
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	_, err = f.svc.CancelAppointment(ctx, y.ID)
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, y.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	moved, err := f.svc.RescheduleAppointment(ctx, x.ID, at(11, 15))
	require.NoError(t, err)
	assert.True(t, at(11, 15).Equal(moved.Start))

	n1, err := f.svc.AddClinicalNote(ctx, y.ID, f.doctor.ID, "cancelled by patient", "")
	require.NoError(t, err)
	n2, err := f.svc.AddClinicalNote(ctx, x.ID, f.doctor.ID, "routine check", "Z00.0")
	require.NoError(t, err)

	history, err := f.svc.PatientHistory(ctx, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, n1.ID, history[0].ID)
	assert.Equal(t, n2.ID, history[1].ID)
	require.NotNil(t, history[1].Diagnosis)

	report, err := f.svc.ReportCancellations(ctx, at(0, 0), at(23, 59))
	require.NoError(t, err)
	found := false
	for _, a := range report.Appointments {
		assert.Equal(t, StatusCancelled, a.Status)
		if a.ID == y.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPgRepository_UniqueLicense(t *testing.T) {
	f := pgFixture(t)

	_, err := f.svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		Name:          "Dr. Duplicate",
		Email:         "dup-" + uuid.NewString()[:8] + "@clinic.example.com",
		LicenseNumber: f.doctor.LicenseNumber,
		Specialty:     "dermatology",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPgRepository_Reminders(t *testing.T) {
	f := pgFixture(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := NewService(NewPgRepository(testPool), redisclient.NewLocalLocker(time.Second),
		config.Config{Location: time.UTC}, zerolog.Nop(),
		WithClock(func() time.Time { return at(7, 0) }), WithNotifier(notifier))

	a := f.schedule(t, at(8, 0), 30)

	_, err := svc.DispatchReminders(ctx, 2*time.Hour)
	require.NoError(t, err)

	got, err := NewPgRepository(testPool).GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ReminderSentAt)
}

func TestPgRepository_EmailUniqueIgnoringCase(t *testing.T) {
	f := pgFixture(t)

	_, err := f.svc.RegisterStaff(context.Background(), "Upper Case", strings.ToUpper(f.patient.Account.Email), RoleAssistant)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestPgRepository_TooLongValueIsValidation(t *testing.T) {
	f := pgFixture(t)

	err := NewPgRepository(testPool).CreateAppointment(context.Background(), &Appointment{
		ID:          uuid.New(),
		PatientID:   f.patient.ID,
		DoctorID:    f.doctor.ID,
		Start:       at(16, 0),
		DurationMin: 30,
		Status:      StatusScheduled,
		Type:        strings.Repeat("x", 150),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPgRepository_ClaimReminderOnlyScheduled(t *testing.T) {
	f := pgFixture(t)
	ctx := context.Background()
	repo := NewPgRepository(testPool)

	a := f.schedule(t, at(17, 0), 30)
	_, err := f.svc.CancelAppointment(ctx, a.ID)
	require.NoError(t, err)

	claimed, err := repo.ClaimReminder(ctx, a.ID, at(7, 0))
	require.NoError(t, err)
	assert.False(t, claimed)

	b := f.schedule(t, at(18, 0), 30)
	claimed, err = repo.ClaimReminder(ctx, b.ID, at(7, 0))
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repo.ClaimReminder(ctx, b.ID, at(7, 1))
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestPgRepository_DirectoryListingsAndRoles(t *testing.T) {
	f := pgFixture(t)
	ctx := context.Background()

	patients, err := f.svc.ListPatients(ctx)
	require.NoError(t, err)
	assert.True(t, containsPatient(patients, f.patient.ID))

	doctors, err := f.svc.ListDoctors(ctx)
	require.NoError(t, err)
	found := false
	for _, d := range doctors {
		if d.ID == f.doctor.ID {
			found = true
			assert.Equal(t, f.doctor.Account.Email, d.Account.Email)
		}
	}
	assert.True(t, found)

	staff, err := f.svc.RegisterStaff(ctx, "Staff Member", "staff-"+uuid.NewString()[:8]+"@clinic.example.com", RoleAssistant)
	require.NoError(t, err)

	assistants, err := f.svc.ListAccounts(ctx, RoleAssistant)
	require.NoError(t, err)
	for _, a := range assistants {
		assert.Equal(t, RoleAssistant, a.Role)
	}

	promoted, err := f.svc.AssignRole(ctx, staff.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, promoted.Role)

	_, err = f.svc.AssignRole(ctx, f.patient.AccountID, RoleAdmin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.AssignRole(ctx, uuid.New(), RoleAdmin)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func containsPatient(list []Patient, id uuid.UUID) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}
