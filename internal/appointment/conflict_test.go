package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2030, 3, 4, hour, minute, 0, 0, time.UTC)
}

func scheduled(doctorID uuid.UUID, start time.Time, durationMin int) Appointment {
	return Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		DoctorID:    doctorID,
		Start:       start,
		DurationMin: durationMin,
		Status:      StatusScheduled,
		Type:        "consultation",
	}
}

func TestWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Window
		want bool
	}{
		{"identical", NewWindow(at(10, 0), 30), NewWindow(at(10, 0), 30), true},
		{"partial", NewWindow(at(10, 0), 30), NewWindow(at(10, 15), 30), true},
		{"contained", NewWindow(at(10, 0), 60), NewWindow(at(10, 15), 10), true},
		{"touching after", NewWindow(at(10, 0), 30), NewWindow(at(10, 30), 30), false},
		{"touching before", NewWindow(at(10, 30), 30), NewWindow(at(10, 0), 30), false},
		{"disjoint", NewWindow(at(9, 0), 30), NewWindow(at(11, 0), 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestIsFree(t *testing.T) {
	doctor := uuid.New()
	other := uuid.New()

	existing := scheduled(doctor, at(10, 0), 30)
	cancelled := scheduled(doctor, at(12, 0), 60)
	cancelled.Status = StatusCancelled
	otherDoctor := scheduled(other, at(14, 0), 60)

	appts := []Appointment{existing, cancelled, otherDoctor}

	assert.False(t, IsFree(doctor, NewWindow(at(10, 15), 30), appts, uuid.Nil), "overlap with scheduled")
	assert.True(t, IsFree(doctor, NewWindow(at(10, 30), 30), appts, uuid.Nil), "back-to-back is allowed")
	assert.True(t, IsFree(doctor, NewWindow(at(12, 15), 15), appts, uuid.Nil), "cancelled never conflicts")
	assert.True(t, IsFree(doctor, NewWindow(at(14, 0), 60), appts, uuid.Nil), "other doctor's appointments are ignored")
	assert.True(t, IsFree(doctor, NewWindow(at(10, 10), 30), appts, existing.ID), "moved appointment is excluded")
}

func TestFindConflict_ReturnsOffender(t *testing.T) {
	doctor := uuid.New()
	a := scheduled(doctor, at(9, 0), 30)
	b := scheduled(doctor, at(10, 0), 30)

	got, ok := FindConflict(doctor, NewWindow(at(10, 20), 20), []Appointment{a, b}, uuid.Nil)
	assert.True(t, ok)
	assert.Equal(t, b.ID, got.ID)
}

func TestAppointment_End(t *testing.T) {
	a := scheduled(uuid.New(), baseTime, 45)
	assert.Equal(t, baseTime.Add(45*time.Minute), a.End())
}
