package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RegisterPatientInput struct {
	Name        string
	Email       string
	DateOfBirth time.Time
	Phone       string
}

type RegisterDoctorInput struct {
	Name          string
	Email         string
	LicenseNumber string
	Specialty     string
}

func (s *Service) newAccount(name, email string, role Role) (Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if len([]rune(name)) < 3 {
		return Account{}, invalid("name", "must be at least 3 characters")
	}
	if err := s.checkMaxLen("name", name, maxNameLen); err != nil {
		return Account{}, err
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Account{}, invalid("email", "must be a valid email address")
	}
	if err := s.checkMaxLen("email", email, maxEmailLen); err != nil {
		return Account{}, err
	}
	if !role.Valid() {
		return Account{}, invalid("role", "unknown role")
	}

	return Account{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
		Role:  role,
	}, nil
}

// RegisterPatient creates the patient's account and patient record together.
func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (_ *Patient, err error) {
	defer s.observe("register_patient", time.Now(), &err)

	acc, err := s.newAccount(in.Name, in.Email, RolePatient)
	if err != nil {
		return nil, err
	}
	if in.DateOfBirth.IsZero() || !in.DateOfBirth.Before(s.now()) {
		return nil, invalid("date_of_birth", "must be in the past")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		return nil, invalid("phone", "invalid phone number")
	}
	if err := s.checkMaxLen("phone", phone, maxPhoneLen); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:          uuid.New(),
		Account:     acc,
		DateOfBirth: in.DateOfBirth.UTC(),
		Phone:       phone,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, persistence("create patient", err)
	}

	s.log.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

// RegisterDoctor creates the doctor's account and doctor record together.
// License numbers are unique.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (_ *Doctor, err error) {
	defer s.observe("register_doctor", time.Now(), &err)

	acc, err := s.newAccount(in.Name, in.Email, RoleDoctor)
	if err != nil {
		return nil, err
	}
	license := strings.TrimSpace(in.LicenseNumber)
	if license == "" {
		return nil, invalid("license_number", "is required")
	}
	if err := s.checkMaxLen("license_number", license, maxLicenseLen); err != nil {
		return nil, err
	}
	specialty := strings.TrimSpace(in.Specialty)
	if specialty == "" {
		return nil, invalid("specialty", "is required")
	}
	if err := s.checkMaxLen("specialty", specialty, maxSpecialtyLen); err != nil {
		return nil, err
	}

	d := &Doctor{
		ID:            uuid.New(),
		Account:       acc,
		LicenseNumber: license,
		Specialty:     specialty,
	}
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, persistence("create doctor", err)
	}

	s.log.Info().Str("doctor_id", d.ID.String()).Msg("doctor registered")
	return d, nil
}

// RegisterStaff creates an assistant or admin account.
func (s *Service) RegisterStaff(ctx context.Context, name, email string, role Role) (_ *Account, err error) {
	defer s.observe("register_staff", time.Now(), &err)

	if role != RoleAssistant && role != RoleAdmin {
		return nil, invalid("role", "must be assistant or admin")
	}
	acc, err := s.newAccount(name, email, role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateAccount(ctx, &acc); err != nil {
		return nil, persistence("create account", err)
	}
	return &acc, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, persistence("get patient", err)
	}
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, persistence("get doctor", err)
	}
	return d, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, persistence("get account", err)
	}
	return a, nil
}

func (s *Service) ListPatients(ctx context.Context) (_ []Patient, err error) {
	defer s.observe("list_patients", time.Now(), &err)

	out, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, persistence("list patients", err)
	}
	return out, nil
}

func (s *Service) ListDoctors(ctx context.Context) (_ []Doctor, err error) {
	defer s.observe("list_doctors", time.Now(), &err)

	out, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, persistence("list doctors", err)
	}
	return out, nil
}

// ListAccounts returns every account, or only those with role when it is
// non-empty.
func (s *Service) ListAccounts(ctx context.Context, role Role) (_ []Account, err error) {
	defer s.observe("list_accounts", time.Now(), &err)

	if role != "" && !role.Valid() {
		return nil, invalid("role", "unknown role")
	}
	out, err := s.repo.ListAccounts(ctx, role)
	if err != nil {
		return nil, persistence("list accounts", err)
	}
	return out, nil
}

// AssignRole moves a staff account between assistant and admin. Patient and
// doctor accounts are rejected since their profile records depend on the role.
func (s *Service) AssignRole(ctx context.Context, id uuid.UUID, role Role) (_ *Account, err error) {
	defer s.observe("assign_role", time.Now(), &err)

	if role != RoleAssistant && role != RoleAdmin {
		return nil, invalid("role", "must be assistant or admin")
	}
	acc, err := s.repo.UpdateStaffRole(ctx, id, role)
	if err != nil {
		return nil, persistence("assign role", err)
	}

	s.log.Info().Str("account_id", id.String()).Str("role", string(role)).Msg("account role changed")
	return acc, nil
}
