package appointment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPatient_Validation(t *testing.T) {
	f := newFixture(t)
	valid := RegisterPatientInput{
		Name:        "Carla Dias",
		Email:       "carla@example.com",
		DateOfBirth: time.Date(1985, 1, 2, 0, 0, 0, 0, time.UTC),
		Phone:       "11 3333-4444",
	}

	tests := []struct {
		name   string
		mutate func(*RegisterPatientInput)
		field  string
	}{
		{"short name", func(in *RegisterPatientInput) { in.Name = "Al" }, "name"},
		{"bad email", func(in *RegisterPatientInput) { in.Email = "not-an-email" }, "email"},
		{"future birth date", func(in *RegisterPatientInput) { in.DateOfBirth = testNow.AddDate(0, 0, 1) }, "date_of_birth"},
		{"missing birth date", func(in *RegisterPatientInput) { in.DateOfBirth = time.Time{} }, "date_of_birth"},
		{"bad phone", func(in *RegisterPatientInput) { in.Phone = "call me maybe" }, "phone"},
		{"phone too long", func(in *RegisterPatientInput) { in.Phone = strings.Repeat("9", 25) }, "phone"},
		{"name too long", func(in *RegisterPatientInput) { in.Name = strings.Repeat("a", 201) }, "name"},
		{"email too long", func(in *RegisterPatientInput) { in.Email = strings.Repeat("a", 190) + "@example.com" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := f.svc.RegisterPatient(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	p, err := f.svc.RegisterPatient(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, RolePatient, p.Account.Role)
	assert.Equal(t, p.Account.ID, p.AccountID)

	got, err := f.svc.GetPatient(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carla Dias", got.Account.Name)
}

func TestRegisterDoctor_UniqueLicense(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		Name:          "Dr. Other",
		Email:         "other@clinic.example.com",
		LicenseNumber: f.doctor.LicenseNumber,
		Specialty:     "neurology",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "license_number", ve.Field)

	_, err = f.svc.RegisterDoctor(context.Background(), RegisterDoctorInput{
		Name:          "Dr. Other",
		Email:         "other@clinic.example.com",
		LicenseNumber: "CRM-3003",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.GetDoctor(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestRegisterDoctor_FieldLengths(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		in    RegisterDoctorInput
		field string
	}{
		{"license too long", RegisterDoctorInput{Name: "Dr. Long", Email: "long1@clinic.example.com", LicenseNumber: strings.Repeat("L", 51), Specialty: "neurology"}, "license_number"},
		{"specialty too long", RegisterDoctorInput{Name: "Dr. Long", Email: "long2@clinic.example.com", LicenseNumber: "CRM-5005", Specialty: strings.Repeat("s", 101)}, "specialty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterDoctor(context.Background(), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRegisterPatient_DuplicateEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterPatient(context.Background(), RegisterPatientInput{
		Name:        "Someone Else",
		Email:       f.patient.Account.Email,
		DateOfBirth: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.RegisterStaff(context.Background(), "Ana Upper", strings.ToUpper(f.patient.Account.Email), RoleAdmin)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
}

func TestRegisterStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.RegisterStaff(ctx, "Rita Assis", "rita@clinic.example.com", RoleAssistant)
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, acc.Role)
	assert.NotEqual(t, uuid.Nil, acc.ID)

	_, err = f.svc.RegisterStaff(ctx, "Rita Assis", "rita2@clinic.example.com", RoleDoctor)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDirectoryListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := f.registerPatient(t, "bia@example.com")
	staff, err := f.svc.RegisterStaff(ctx, "Rita Assis", "rita@clinic.example.com", RoleAssistant)
	require.NoError(t, err)

	patients, err := f.svc.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, f.patient.ID, patients[0].ID)
	assert.Equal(t, second.ID, patients[1].ID)
	assert.Equal(t, "bia@example.com", patients[1].Account.Email)

	doctors, err := f.svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "CRM-1001", doctors[0].LicenseNumber)
	assert.Equal(t, RoleDoctor, doctors[0].Account.Role)

	all, err := f.svc.ListAccounts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	assistants, err := f.svc.ListAccounts(ctx, RoleAssistant)
	require.NoError(t, err)
	require.Len(t, assistants, 1)
	assert.Equal(t, staff.ID, assistants[0].ID)

	_, err = f.svc.ListAccounts(ctx, Role("janitor"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.GetAccount(ctx, f.doctor.AccountID)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.Account.Email, acc.Email)

	_, err = f.svc.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	staff, err := f.svc.RegisterStaff(ctx, "Rita Assis", "rita@clinic.example.com", RoleAssistant)
	require.NoError(t, err)

	promoted, err := f.svc.AssignRole(ctx, staff.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, promoted.Role)

	stored, err := f.svc.GetAccount(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, stored.Role)

	t.Run("patient and doctor accounts keep their role", func(t *testing.T) {
		for _, id := range []uuid.UUID{f.patient.AccountID, f.doctor.AccountID} {
			_, err := f.svc.AssignRole(ctx, id, RoleAdmin)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "role", ve.Field)
		}

		p, err := f.svc.GetPatient(ctx, f.patient.ID)
		require.NoError(t, err)
		assert.Equal(t, RolePatient, p.Account.Role)
	})

	t.Run("staff cannot become patient or doctor", func(t *testing.T) {
		for _, role := range []Role{RolePatient, RoleDoctor, Role("")} {
			_, err := f.svc.AssignRole(ctx, staff.ID, role)
			assert.ErrorIs(t, err, ErrValidation)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := f.svc.AssignRole(ctx, uuid.New(), RoleAssistant)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
