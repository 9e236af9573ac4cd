package api

import (
	"net/http"
	"time"

	"github.com/hackgods/medical-appointments/internal/appointment"
)

func registerPatientHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		dob, _ := time.Parse(time.DateOnly, req.DateOfBirth)

		p, err := svc.RegisterPatient(r.Context(), appointment.RegisterPatientInput{
			Name:        req.Name,
			Email:       req.Email,
			DateOfBirth: dob,
			Phone:       req.Phone,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func getPatientHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		p, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func registerDoctorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterDoctorRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		d, err := svc.RegisterDoctor(r.Context(), appointment.RegisterDoctorInput{
			Name:          req.Name,
			Email:         req.Email,
			LicenseNumber: req.LicenseNumber,
			Specialty:     req.Specialty,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, d)
	}
}

func getDoctorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, d)
	}
}

func registerStaffHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterStaffRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		acc, err := svc.RegisterStaff(r.Context(), req.Name, req.Email, appointment.Role(req.Role))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, acc)
	}
}

func listPatientsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patients, err := svc.ListPatients(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, PatientListResponse{Count: len(patients), Patients: patients})
	}
}

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DoctorListResponse{Count: len(doctors), Doctors: doctors})
	}
}

func listAccountsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := appointment.Role(r.URL.Query().Get("role"))

		accounts, err := svc.ListAccounts(r.Context(), role)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AccountListResponse{Count: len(accounts), Accounts: accounts})
	}
}

func getAccountHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		acc, err := svc.GetAccount(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, acc)
	}
}

func assignRoleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req AssignRoleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		acc, err := svc.AssignRole(r.Context(), id, appointment.Role(req.Role))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, acc)
	}
}
