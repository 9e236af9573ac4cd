package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-appointments/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		// validated as UUIDs above
		patientID := uuid.MustParse(req.PatientID)
		doctorID := uuid.MustParse(req.DoctorID)

		appt, err := svc.ScheduleAppointment(r.Context(), patientID, doctorID, req.Start, req.DurationMin, req.Type)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, detail)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.AppointmentFilter

		if raw := q.Get("from"); raw != "" {
			from, err := parseTimeParam(raw, svc.Location(), false)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
				return
			}
			f.From = from
		}
		if raw := q.Get("to"); raw != "" {
			to, err := parseTimeParam(raw, svc.Location(), true)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
				return
			}
			f.To = to
		}
		if raw := q.Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if raw := q.Get("status"); raw != "" {
			status := appointment.AppointmentStatus(raw)
			if status != appointment.StatusScheduled && status != appointment.StatusCancelled {
				writeError(w, http.StatusBadRequest, "invalid_status", "status must be scheduled or cancelled")
				return
			}
			f.Status = &status
		}

		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Count: len(appts), Appointments: appts})
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), id, req.Start)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func addNoteHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req AddNoteRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		note, err := svc.AddClinicalNote(r.Context(), id, uuid.MustParse(req.AuthorDoctorID), req.Body, req.Diagnosis)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, note)
	}
}

func editNoteHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req EditNoteRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		note, err := svc.EditNoteBody(r.Context(), id, req.Body)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, note)
	}
}

func doctorAgendaHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		day := time.Now().In(svc.Location())
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, raw, svc.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			day = parsed
		}

		appts, err := svc.DoctorAgenda(r.Context(), id, day)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Count: len(appts), Appointments: appts})
	}
}

func patientHistoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		notes, err := svc.PatientHistory(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, NoteListResponse{Count: len(notes), Notes: notes})
	}
}
