package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/medical-appointments/internal/redis"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Reminder
	fail bool
}

func (n *recordingNotifier) NotifyReminder(_ context.Context, r Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, r)
	return nil
}

func TestDispatchReminders(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newFixture(t, WithNotifier(notifier))
	ctx := context.Background()

	soon := f.schedule(t, testNow.Add(2*time.Hour), 30)
	f.schedule(t, testNow.Add(48*time.Hour), 30)
	cancelled := f.schedule(t, testNow.Add(3*time.Hour), 30)
	_, err := f.svc.CancelAppointment(ctx, cancelled.ID)
	require.NoError(t, err)

	sent, err := f.svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, soon.ID, notifier.sent[0].Appointment.ID)
	assert.Equal(t, f.patient.Account.Email, notifier.sent[0].Patient.Account.Email)

	got, err := f.repo.GetAppointmentByID(ctx, soon.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReminderSentAt)

	sent, err = f.svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, notifier.sent, 1)
}

func TestDispatchReminders_FailureLeavesUnmarked(t *testing.T) {
	notifier := &recordingNotifier{fail: true}
	f := newFixture(t, WithNotifier(notifier))
	ctx := context.Background()

	a := f.schedule(t, testNow.Add(time.Hour), 30)

	sent, err := f.svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	got, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReminderSentAt)
}

func TestDispatchReminders_RescheduleResetsReminder(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newFixture(t, WithNotifier(notifier))
	ctx := context.Background()

	a := f.schedule(t, testNow.Add(time.Hour), 30)
	_, err := f.svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)

	_, err = f.svc.RescheduleAppointment(ctx, a.ID, testNow.Add(5*time.Hour))
	require.NoError(t, err)

	sent, err := f.svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

// cancelAfterFindRepository cancels an appointment once the due list has
// been read, before any reminder goes out.
type cancelAfterFindRepository struct {
	*MemoryRepository
	cancel func()
}

func (r *cancelAfterFindRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	due, err := r.MemoryRepository.FindDueReminders(ctx, from, to)
	r.cancel()
	return due, err
}

func TestDispatchReminders_SkipsAppointmentCancelledMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, testNow.Add(2*time.Hour), 30)

	notifier := &recordingNotifier{}
	repo := &cancelAfterFindRepository{MemoryRepository: f.repo}
	repo.cancel = func() {
		_, err := f.svc.CancelAppointment(ctx, a.ID)
		require.NoError(t, err)
	}
	svc := newTestService(repo, redisclient.NewLocalLocker(time.Second), WithNotifier(notifier))

	sent, err := svc.DispatchReminders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, notifier.sent)

	got, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.ReminderSentAt)
}
