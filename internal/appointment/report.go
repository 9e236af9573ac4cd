package appointment

import (
	"context"
	"time"
)

// Report is a list of appointments whose start falls in [From, To].
type Report struct {
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	Count        int           `json:"count"`
	Appointments []Appointment `json:"appointments"`
}

// StatusSummary counts appointments per status in [From, To].
type StatusSummary struct {
	From     time.Time                 `json:"from"`
	To       time.Time                 `json:"to"`
	Total    int                       `json:"total"`
	ByStatus map[AppointmentStatus]int `json:"by_status"`
}

// BuildReport keeps the appointments accepted by keep, preserving order.
func BuildReport(from, to time.Time, appts []Appointment, keep func(Appointment) bool) Report {
	r := Report{From: from, To: to, Appointments: []Appointment{}}
	for _, a := range appts {
		if keep(a) {
			r.Appointments = append(r.Appointments, a)
		}
	}
	r.Count = len(r.Appointments)
	return r
}

func Summarize(from, to time.Time, appts []Appointment) StatusSummary {
	sum := StatusSummary{
		From: from,
		To:   to,
		ByStatus: map[AppointmentStatus]int{
			StatusScheduled: 0,
			StatusCancelled: 0,
		},
	}
	for _, a := range appts {
		sum.ByStatus[a.Status]++
		sum.Total++
	}
	return sum
}

func (s *Service) loadRange(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	if from.IsZero() {
		return nil, invalid("from", "is required")
	}
	if to.IsZero() {
		return nil, invalid("to", "is required")
	}
	if to.Before(from) {
		return nil, invalid("to", "must not be before from")
	}

	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{From: from, To: to})
	if err != nil {
		return nil, persistence("load report range", err)
	}
	return appts, nil
}

// ReportCompletedAppointments lists non-cancelled appointments starting in
// [from, to], ascending by start.
func (s *Service) ReportCompletedAppointments(ctx context.Context, from, to time.Time) (Report, error) {
	appts, err := s.loadRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(from, to, appts, func(a Appointment) bool {
		return a.Status != StatusCancelled
	}), nil
}

// ReportCancellations lists cancelled appointments starting in [from, to].
func (s *Service) ReportCancellations(ctx context.Context, from, to time.Time) (Report, error) {
	appts, err := s.loadRange(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(from, to, appts, func(a Appointment) bool {
		return a.Status == StatusCancelled
	}), nil
}

func (s *Service) ReportStatusSummary(ctx context.Context, from, to time.Time) (StatusSummary, error) {
	appts, err := s.loadRange(ctx, from, to)
	if err != nil {
		return StatusSummary{}, err
	}
	return Summarize(from, to, appts), nil
}
