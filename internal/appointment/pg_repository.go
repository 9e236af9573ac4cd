package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation  = "23P01"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgStringTooLong       = "22001"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentCols = `id, patient_id, doctor_id, start_time, duration_min, status, type, reminder_sent_at, created_at, updated_at`

const noteCols = `id, patient_id, appointment_id, author_doctor_id, body, diagnosis, created_at, updated_at`

const accountCols = `id, name, email, role, created_at, updated_at`

const patientSelect = `
	SELECT p.id, p.account_id, p.date_of_birth, p.phone, p.created_at, p.updated_at,
	       a.id, a.name, a.email, a.role, a.created_at, a.updated_at
	FROM patients p
	JOIN accounts a ON a.id = p.account_id`

const doctorSelect = `
	SELECT d.id, d.account_id, d.license_number, d.specialty, d.created_at, d.updated_at,
	       a.id, a.name, a.email, a.role, a.created_at, a.updated_at
	FROM doctors d
	JOIN accounts a ON a.id = d.account_id`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account

	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.DateOfBirth,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Account.ID,
		&p.Account.Name,
		&p.Account.Email,
		&p.Account.Role,
		&p.Account.CreatedAt,
		&p.Account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.LicenseNumber,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Account.ID,
		&d.Account.Name,
		&d.Account.Email,
		&d.Account.Role,
		&d.Account.CreatedAt,
		&d.Account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reminderSentAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Start,
		&a.DurationMin,
		&a.Status,
		&a.Type,
		&reminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ReminderSentAt = reminderSentAt
	return &a, nil
}

func scanNote(row pgx.Row) (*Note, error) {
	var n Note

	err := row.Scan(
		&n.ID,
		&n.PatientID,
		&n.AppointmentID,
		&n.AuthorDoctorID,
		&n.Body,
		&n.Diagnosis,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	return &n, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func collectNotes(rows pgx.Rows) ([]Note, error) {
	defer rows.Close()

	var result []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// translatePgError maps constraint violations onto domain errors.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgExclusionViolation:
		return ErrSchedulingConflict
	case pgUniqueViolation:
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return invalid("email", "already registered")
		case strings.Contains(pgErr.ConstraintName, "license"):
			return invalid("license_number", "already registered")
		}
	case pgStringTooLong:
		field := pgErr.ColumnName
		if field == "" {
			field = "value"
		}
		return invalid(field, "is too long")
	case pgForeignKeyViolation:
		switch {
		case strings.Contains(pgErr.ConstraintName, "patient"):
			return ErrPatientNotFound
		case strings.Contains(pgErr.ConstraintName, "author_doctor"), strings.Contains(pgErr.ConstraintName, "doctor"):
			return ErrDoctorNotFound
		case strings.Contains(pgErr.ConstraintName, "appointment"):
			return ErrAppointmentNotFound
		}
	}

	return err
}

func insertAccount(ctx context.Context, tx pgx.Tx, a *Account) error {
	return tx.QueryRow(ctx, `
		INSERT INTO accounts (id, name, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.Name, a.Email, a.Role).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// Directory

func (r *PgRepository) CreateAccount(ctx context.Context, a *Account) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return translatePgError(insertAccount(ctx, tx, a))
	})
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, &p.Account); err != nil {
			return translatePgError(err)
		}

		p.AccountID = p.Account.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO patients (id, account_id, date_of_birth, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			RETURNING created_at, updated_at
		`, p.ID, p.AccountID, p.DateOfBirth, p.Phone).Scan(&p.CreatedAt, &p.UpdatedAt)
		return translatePgError(err)
	})
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, &d.Account); err != nil {
			return translatePgError(err)
		}

		d.AccountID = d.Account.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (id, account_id, license_number, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			RETURNING created_at, updated_at
		`, d.ID, d.AccountID, d.LicenseNumber, d.Specialty).Scan(&d.CreatedAt, &d.UpdatedAt)
		return translatePgError(err)
	})
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, patientSelect+` WHERE p.id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, doctorSelect+` WHERE d.id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, patientSelect+` ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, doctorSelect+` ORDER BY d.created_at, d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PgRepository) ListAccounts(ctx context.Context, role Role) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountCols+`
		FROM accounts
		WHERE ($1::text = '' OR role = $1::text)
		ORDER BY created_at, id
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// UpdateStaffRole only touches assistant and admin accounts. The role is
// checked in the same statement as the update.
func (r *PgRepository) UpdateStaffRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET role = $2, updated_at = now()
		WHERE id = $1 AND role IN ('assistant', 'admin')
		RETURNING `+accountCols, id, role)

	acc, err := scanAccount(row)
	if !errors.Is(err, ErrAccountNotFound) {
		return acc, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, errNotStaffAccount
	}
	return nil, ErrAccountNotFound
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListScheduledForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'scheduled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time, id
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time <= $%d", f.To)
	}

	query := `SELECT ` + appointmentCols + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, duration_min, status, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentCols,
		a.ID, a.PatientID, a.DoctorID, a.Start, a.End(), a.DurationMin, a.Status, a.Type)

	created, err := scanAppointment(row)
	if err != nil {
		return translatePgError(err)
	}

	*a = *created
	return nil
}

func (r *PgRepository) UpdateAppointmentStart(ctx context.Context, id uuid.UUID, start time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $2 + make_interval(mins => duration_min),
		    reminder_sent_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentCols,
		id, start)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentCols,
		id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return a, nil
}

// Notes

func (r *PgRepository) InsertNote(ctx context.Context, n *Note) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if n.AppointmentID != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE appointments SET updated_at = now()
				WHERE id = $1 AND patient_id = $2
			`, *n.AppointmentID, n.PatientID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrAppointmentNotFound
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO clinical_notes (id, patient_id, appointment_id, author_doctor_id, body, diagnosis, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, n.ID, n.PatientID, n.AppointmentID, n.AuthorDoctorID, n.Body, n.Diagnosis, n.CreatedAt, n.UpdatedAt)
		return translatePgError(err)
	})
}

func (r *PgRepository) GetNoteByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+noteCols+`
		FROM clinical_notes
		WHERE id = $1
	`, id)
	return scanNote(row)
}

func (r *PgRepository) UpdateNoteBody(ctx context.Context, id uuid.UUID, body string, at time.Time) (*Note, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE clinical_notes
		SET body = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+noteCols,
		id, body, at)
	return scanNote(row)
}

func (r *PgRepository) ListNotesByPatient(ctx context.Context, patientID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+noteCols+`
		FROM clinical_notes
		WHERE patient_id = $1
		ORDER BY seq
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectNotes(rows)
}

func (r *PgRepository) ListNotesByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+noteCols+`
		FROM clinical_notes
		WHERE appointment_id = $1
		ORDER BY seq
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return collectNotes(rows)
}

// Reminders

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND reminder_sent_at IS NULL
		  AND start_time > $1
		  AND start_time <= $2
		ORDER BY start_time, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2
		WHERE id = $1
		  AND status = 'scheduled'
		  AND reminder_sent_at IS NULL
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReleaseReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = NULL
		WHERE id = $1
		  AND reminder_sent_at = $2
	`, id, at)
	return err
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
