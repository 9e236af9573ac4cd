package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDirectory(t *testing.T, repo *MemoryRepository) (*Patient, *Doctor) {
	t.Helper()
	ctx := context.Background()

	p := &Patient{ID: uuid.New(), Account: Account{ID: uuid.New(), Name: "Pat", Email: "pat@example.com", Role: RolePatient}}
	require.NoError(t, repo.CreatePatient(ctx, p))
	d := &Doctor{ID: uuid.New(), Account: Account{ID: uuid.New(), Name: "Doc", Email: "doc@example.com", Role: RoleDoctor}, LicenseNumber: "L-1", Specialty: "gp"}
	require.NoError(t, repo.CreateDoctor(ctx, d))
	return p, d
}

func newAppt(p *Patient, d *Doctor, start time.Time, durationMin int) *Appointment {
	return &Appointment{
		ID:          uuid.New(),
		PatientID:   p.ID,
		DoctorID:    d.ID,
		Start:       start,
		DurationMin: durationMin,
		Status:      StatusScheduled,
		Type:        "consultation",
	}
}

func TestMemoryRepository_OverlapGuard(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	first := newAppt(p, d, at(10, 0), 30)
	require.NoError(t, repo.CreateAppointment(ctx, first))

	assert.ErrorIs(t, repo.CreateAppointment(ctx, newAppt(p, d, at(10, 29), 30)), ErrSchedulingConflict)
	require.NoError(t, repo.CreateAppointment(ctx, newAppt(p, d, at(10, 30), 30)))

	_, err := repo.UpdateAppointmentStart(ctx, first.ID, at(10, 15))
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	got, err := repo.GetAppointmentByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), got.Start)
}

func TestMemoryRepository_ConcurrentInsertsOneWins(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateAppointment(ctx, newAppt(p, d, at(10, i), 30))
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

func TestMemoryRepository_ConditionalStatusUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	a := newAppt(p, d, at(10, 0), 30)
	require.NoError(t, repo.CreateAppointment(ctx, a))

	updated, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	_, err = repo.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = repo.UpdateAppointmentStart(ctx, a.ID, at(12, 0))
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepository_InsertNoteChecksLinks(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	a := newAppt(p, d, at(10, 0), 30)
	require.NoError(t, repo.CreateAppointment(ctx, a))

	stranger := uuid.New()
	n := a.NewNote(d.ID, "body", "", at(10, 30))
	n.AppointmentID = &stranger
	assert.ErrorIs(t, repo.InsertNote(ctx, &n), ErrAppointmentNotFound)

	notes, err := repo.ListNotesByPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	n = a.NewNote(d.ID, "body", "", at(10, 30))
	require.NoError(t, repo.InsertNote(ctx, &n))

	notes, err = repo.ListNotesByAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestMemoryRepository_DueReminders(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	inside := newAppt(p, d, at(12, 0), 30)
	edge := newAppt(p, d, at(10, 0), 30)
	require.NoError(t, repo.CreateAppointment(ctx, inside))
	require.NoError(t, repo.CreateAppointment(ctx, edge))

	due, err := repo.FindDueReminders(ctx, at(10, 0), at(12, 0))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inside.ID, due[0].ID)

	claimed, err := repo.ClaimReminder(ctx, inside.ID, at(9, 0))
	require.NoError(t, err)
	assert.True(t, claimed)
	due, err = repo.FindDueReminders(ctx, at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.Empty(t, due)

	claimed, err = repo.ClaimReminder(ctx, inside.ID, at(9, 5))
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, repo.ReleaseReminder(ctx, inside.ID, at(9, 0)))
	due, err = repo.FindDueReminders(ctx, at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMemoryRepository_ClaimReminderSkipsCancelled(t *testing.T) {
	repo := NewMemoryRepository()
	p, d := seedDirectory(t, repo)
	ctx := context.Background()

	a := newAppt(p, d, at(12, 0), 30)
	require.NoError(t, repo.CreateAppointment(ctx, a))
	_, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)

	claimed, err := repo.ClaimReminder(ctx, a.ID, at(9, 0))
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestMemoryRepository_ListsFollowRegistrationOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var ids []uuid.UUID
	for i, name := range []string{"Zoe", "Alan", "Mia"} {
		p := &Patient{ID: uuid.New(), Account: Account{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: RolePatient}}
		require.NoError(t, repo.CreatePatient(ctx, p))
		ids = append(ids, p.ID)

		if i == 1 {
			staff := &Account{ID: uuid.New(), Name: "Staff", Email: "staff@example.com", Role: RoleAdmin}
			require.NoError(t, repo.CreateAccount(ctx, staff))
		}
	}

	patients, err := repo.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 3)
	for i, p := range patients {
		assert.Equal(t, ids[i], p.ID)
		assert.Equal(t, p.AccountID, p.Account.ID)
	}

	admins, err := repo.ListAccounts(ctx, RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "Staff", admins[0].Name)

	doctors, err := repo.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestMemoryRepository_UpdateStaffRole(t *testing.T) {
	repo := NewMemoryRepository()
	p, _ := seedDirectory(t, repo)
	ctx := context.Background()

	staff := &Account{ID: uuid.New(), Name: "Staff", Email: "staff@example.com", Role: RoleAssistant}
	require.NoError(t, repo.CreateAccount(ctx, staff))

	got, err := repo.UpdateStaffRole(ctx, staff.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)

	_, err = repo.UpdateStaffRole(ctx, p.AccountID, RoleAdmin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = repo.UpdateStaffRole(ctx, uuid.New(), RoleAdmin)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
