package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start time.Time, durationMin int) Window {
	return Window{Start: start, End: start.Add(time.Duration(durationMin) * time.Minute)}
}

// Overlaps reports whether the two windows share any instant. Windows that
// only touch at a boundary do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// FindConflict returns the first of the doctor's scheduled appointments,
// other than excludeID, whose window overlaps candidate. Pass uuid.Nil as
// excludeID when nothing is being moved.
func FindConflict(doctorID uuid.UUID, candidate Window, existing []Appointment, excludeID uuid.UUID) (*Appointment, bool) {
	for i := range existing {
		a := &existing[i]
		if a.DoctorID != doctorID || a.Status != StatusScheduled {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if candidate.Overlaps(a.Window()) {
			return a, true
		}
	}
	return nil, false
}

// IsFree reports whether candidate is free for the doctor given the
// existing appointments.
func IsFree(doctorID uuid.UUID, candidate Window, existing []Appointment, excludeID uuid.UUID) bool {
	_, conflict := FindConflict(doctorID, candidate, existing, excludeID)
	return !conflict
}
