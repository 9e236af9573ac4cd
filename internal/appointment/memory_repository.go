package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository kept in process memory. It applies the
// same overlap guard as the Postgres exclusion constraint so both stores
// behave the same under the service. Used for tests and STORE_DRIVER=memory.
type MemoryRepository struct {
	mu sync.RWMutex

	accounts     map[uuid.UUID]Account
	accountOrder []uuid.UUID
	emails       map[string]uuid.UUID
	patients     map[uuid.UUID]Patient
	doctors      map[uuid.UUID]Doctor
	licenses     map[string]uuid.UUID
	appointments map[uuid.UUID]Appointment
	notes        map[uuid.UUID]Note
	noteOrder    []uuid.UUID
	events       []EventLog

	now func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[uuid.UUID]Account),
		emails:       make(map[string]uuid.UUID),
		patients:     make(map[uuid.UUID]Patient),
		doctors:      make(map[uuid.UUID]Doctor),
		licenses:     make(map[string]uuid.UUID),
		appointments: make(map[uuid.UUID]Appointment),
		notes:        make(map[uuid.UUID]Note),
		now:          time.Now,
	}
}

// Directory

func (r *MemoryRepository) putAccountLocked(a *Account) error {
	email := strings.ToLower(a.Email)
	if _, taken := r.emails[email]; taken {
		return invalid("email", "already registered")
	}

	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.accounts[a.ID] = *a
	r.accountOrder = append(r.accountOrder, a.ID)
	r.emails[email] = a.ID
	return nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.putAccountLocked(a)
}

func (r *MemoryRepository) CreatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.putAccountLocked(&p.Account); err != nil {
		return err
	}

	p.AccountID = p.Account.ID
	p.CreatedAt, p.UpdatedAt = p.Account.CreatedAt, p.Account.UpdatedAt
	r.patients[p.ID] = *p
	return nil
}

func (r *MemoryRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.licenses[d.LicenseNumber]; taken {
		return invalid("license_number", "already registered")
	}
	if err := r.putAccountLocked(&d.Account); err != nil {
		return err
	}

	d.AccountID = d.Account.ID
	d.CreatedAt, d.UpdatedAt = d.Account.CreatedAt, d.Account.UpdatedAt
	r.doctors[d.ID] = *d
	r.licenses[d.LicenseNumber] = d.ID
	return nil
}

func (r *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Account = r.accounts[p.AccountID]
	return &p, nil
}

func (r *MemoryRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.Account = r.accounts[d.AccountID]
	return &d, nil
}

func (r *MemoryRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byAccount := make(map[uuid.UUID]Patient, len(r.patients))
	for _, p := range r.patients {
		byAccount[p.AccountID] = p
	}

	var out []Patient
	for _, id := range r.accountOrder {
		if p, ok := byAccount[id]; ok {
			p.Account = r.accounts[id]
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byAccount := make(map[uuid.UUID]Doctor, len(r.doctors))
	for _, d := range r.doctors {
		byAccount[d.AccountID] = d
	}

	var out []Doctor
	for _, id := range r.accountOrder {
		if d, ok := byAccount[id]; ok {
			d.Account = r.accounts[id]
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context, role Role) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Account
	for _, id := range r.accountOrder {
		a := r.accounts[id]
		if role != "" && a.Role != role {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStaffRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if a.Role != RoleAssistant && a.Role != RoleAdmin {
		return nil, errNotStaffAccount
	}

	a.Role = role
	a.UpdatedAt = r.now()
	r.accounts[id] = a
	return &a, nil
}

// Appointments

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func sortAppointments(out []Appointment) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}

func (r *MemoryRepository) ListScheduledForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	span := Window{Start: from, End: to}
	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || a.Status != StatusScheduled {
			continue
		}
		if a.Window().Overlaps(span) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if !f.From.IsZero() && a.Start.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.Start.After(f.To) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

// overlapGuardLocked is the store-side equivalent of the exclusion constraint.
func (r *MemoryRepository) overlapGuardLocked(a Appointment) error {
	if a.Status != StatusScheduled {
		return nil
	}
	others := make([]Appointment, 0, len(r.appointments))
	for _, o := range r.appointments {
		others = append(others, o)
	}
	if !IsFree(a.DoctorID, a.Window(), others, a.ID) {
		return ErrSchedulingConflict
	}
	return nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[a.PatientID]; !ok {
		return ErrPatientNotFound
	}
	if _, ok := r.doctors[a.DoctorID]; !ok {
		return ErrDoctorNotFound
	}
	if err := r.overlapGuardLocked(*a); err != nil {
		return err
	}

	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) UpdateAppointmentStart(ctx context.Context, id uuid.UUID, start time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}

	a.Start = start
	if err := r.overlapGuardLocked(a); err != nil {
		return nil, err
	}

	a.ReminderSentAt = nil
	a.UpdatedAt = r.now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	if err := r.overlapGuardLocked(a); err != nil {
		return nil, err
	}

	a.UpdatedAt = r.now()
	r.appointments[id] = a
	return &a, nil
}

// Notes

func (r *MemoryRepository) InsertNote(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[n.PatientID]; !ok {
		return ErrPatientNotFound
	}
	if _, ok := r.doctors[n.AuthorDoctorID]; !ok {
		return ErrDoctorNotFound
	}
	if n.AppointmentID != nil {
		a, ok := r.appointments[*n.AppointmentID]
		if !ok || a.PatientID != n.PatientID {
			return ErrAppointmentNotFound
		}
		a.UpdatedAt = r.now()
		r.appointments[a.ID] = a
	}

	r.notes[n.ID] = *n
	r.noteOrder = append(r.noteOrder, n.ID)
	return nil
}

func (r *MemoryRepository) GetNoteByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return &n, nil
}

func (r *MemoryRepository) UpdateNoteBody(ctx context.Context, id uuid.UUID, body string, at time.Time) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	n.Body = body
	n.UpdatedAt = at
	r.notes[id] = n
	return &n, nil
}

func (r *MemoryRepository) listNotes(match func(Note) bool) []Note {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Note
	for _, id := range r.noteOrder {
		if n := r.notes[id]; match(n) {
			out = append(out, n)
		}
	}
	return out
}

func (r *MemoryRepository) ListNotesByPatient(ctx context.Context, patientID uuid.UUID) ([]Note, error) {
	return r.listNotes(func(n Note) bool { return n.PatientID == patientID }), nil
}

func (r *MemoryRepository) ListNotesByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Note, error) {
	return r.listNotes(func(n Note) bool {
		return n.AppointmentID != nil && *n.AppointmentID == appointmentID
	}), nil
}

// Reminders

func (r *MemoryRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusScheduled || a.ReminderSentAt != nil {
			continue
		}
		if a.Start.After(from) && !a.Start.After(to) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *MemoryRepository) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return false, ErrAppointmentNotFound
	}
	if a.Status != StatusScheduled || a.ReminderSentAt != nil {
		return false, nil
	}
	a.ReminderSentAt = &at
	r.appointments[id] = a
	return true, nil
}

func (r *MemoryRepository) ReleaseReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if a.ReminderSentAt != nil && a.ReminderSentAt.Equal(at) {
		a.ReminderSentAt = nil
		r.appointments[id] = a
	}
	return nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded audit events in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
