package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-appointments/internal/appointment"
	"github.com/hackgods/medical-appointments/internal/metrics"
)

type RouterConfig struct {
	Service *appointment.Service
	Logger  zerolog.Logger
	Metrics *metrics.Collector // optional
	Checks  []HealthCheck
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	svc := cfg.Service

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	health := NewHealthHandler(cfg.Env, cfg.Version, cfg.Checks...)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", registerPatientHandler(svc))
		r.Get("/", listPatientsHandler(svc))
		r.Get("/{id}", getPatientHandler(svc))
		r.Get("/{id}/history", patientHistoryHandler(svc))
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", registerDoctorHandler(svc))
		r.Get("/", listDoctorsHandler(svc))
		r.Get("/{id}", getDoctorHandler(svc))
		r.Get("/{id}/agenda", doctorAgendaHandler(svc))
	})

	r.Post("/staff", registerStaffHandler(svc))

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", listAccountsHandler(svc))
		r.Get("/{id}", getAccountHandler(svc))
		r.Put("/{id}/role", assignRoleHandler(svc))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Put("/{id}/reschedule", rescheduleAppointmentHandler(svc))
		r.Put("/{id}/cancel", cancelAppointmentHandler(svc))
		r.Post("/{id}/notes", addNoteHandler(svc))
	})

	r.Patch("/notes/{id}", editNoteHandler(svc))

	r.Route("/reports", func(r chi.Router) {
		r.Get("/completed", reportHandler(svc, svc.ReportCompletedAppointments))
		r.Get("/cancellations", reportHandler(svc, svc.ReportCancellations))
		r.Get("/summary", summaryReportHandler(svc))
	})

	return r
}
