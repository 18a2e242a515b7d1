package mockdata

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"
)

// Served endpoint paths
const (
	EndpointAppointments = "/api/appointments"
	EndpointPatients     = "/api/patients"
	EndpointDoctors      = "/api/doctors"
	EndpointMetrics      = "/api/metrics"
	EndpointBills        = "/api/bills"
)

// ErrUnknownEndpoint is returned for paths the source does not serve
var ErrUnknownEndpoint = errors.New("mockdata: unknown endpoint")

// Endpoints lists every path the source serves
func Endpoints() []string {
	return []string{EndpointAppointments, EndpointPatients, EndpointDoctors, EndpointMetrics, EndpointBills}
}

// Source serves canned clinic records. Parameters are ignored. Metrics are
// regenerated on every call so callers can observe whether a fetch happened.
type Source struct {
	now         func() time.Time
	generations atomic.Int64
}

// NewSource creates a source. A nil clock defaults to time.Now.
func NewSource(now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{now: now}
}

// Fetch returns the canned payload for endpoint
func (s *Source) Fetch(ctx context.Context, endpoint string, _ interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch endpoint {
	case EndpointAppointments:
		return s.appointments(), nil
	case EndpointPatients:
		return slices.Clone(patients), nil
	case EndpointDoctors:
		return slices.Clone(doctors), nil
	case EndpointMetrics:
		return s.metrics(), nil
	case EndpointBills:
		return s.bills(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}
}

// Generations counts how many metrics snapshots have been produced
func (s *Source) Generations() int64 {
	return s.generations.Load()
}

func (s *Source) metrics() *ClinicMetrics {
	gen := s.generations.Add(1)
	return &ClinicMetrics{
		Generation:         gen,
		GeneratedAt:        s.now(),
		ActivePatients:     128 + int(gen%7),
		AppointmentsToday:  34 + int(gen%5),
		BedOccupancy:       0.72 + float64(gen%10)/100,
		AverageWaitMinutes: 18 + int(gen%4),
	}
}

func (s *Source) appointments() []Appointment {
	day := s.now().UTC().Truncate(24 * time.Hour)
	return []Appointment{
		{ID: "apt-1001", PatientID: patientAlvarez, DoctorID: "doc-3001", ClinicID: ClinicNorth, StartTime: day.Add(9 * time.Hour), Status: "confirmed"},
		{ID: "apt-1002", PatientID: patientOkafor, DoctorID: "doc-3002", ClinicID: ClinicNorth, StartTime: day.Add(10*time.Hour + 30*time.Minute), Status: "checked_in"},
		{ID: "apt-1003", PatientID: patientFischer, DoctorID: "doc-3001", ClinicID: ClinicSouth, StartTime: day.Add(14 * time.Hour), Status: "scheduled"},
		{ID: "apt-1004", PatientID: patientAlvarez, DoctorID: "doc-3003", ClinicID: ClinicSouth, StartTime: day.Add(40 * time.Hour), Status: "scheduled"},
	}
}

func (s *Source) bills() []Bill {
	day := s.now().UTC().Truncate(24 * time.Hour)
	return []Bill{
		{ID: "bill-4001", PatientID: patientAlvarez, ClinicID: ClinicNorth, AmountCents: 12500, Currency: "USD", Status: "paid", DueDate: day.AddDate(0, 0, -10)},
		{ID: "bill-4002", PatientID: patientOkafor, ClinicID: ClinicNorth, AmountCents: 48000, Currency: "USD", Status: "pending", DueDate: day.AddDate(0, 0, 14)},
		{ID: "bill-4003", PatientID: patientFischer, ClinicID: ClinicSouth, AmountCents: 9900, Currency: "USD", Status: "overdue", DueDate: day.AddDate(0, 0, -3)},
	}
}

var patients = []Patient{
	{ID: patientAlvarez, Name: "Maria Alvarez", Email: PatientAlvarezEmail, Age: 54, ClinicID: ClinicNorth, Condition: "Type 2 diabetes", RiskLevel: "medium", PrimaryCare: "doc-3001"},
	{ID: patientOkafor, Name: "James Okafor", Email: PatientOkaforEmail, Age: 67, ClinicID: ClinicNorth, Condition: "Congestive heart failure", RiskLevel: "high", PrimaryCare: "doc-3002"},
	{ID: patientFischer, Name: "Lena Fischer", Email: PatientFischerEmail, Age: 31, ClinicID: ClinicSouth, Condition: "Asthma", RiskLevel: "low", PrimaryCare: "doc-3001"},
}

var doctors = []Doctor{
	{ID: "doc-3001", Name: "Dr. Priya Raman", Email: DoctorRamanEmail, Specialty: "Internal Medicine", ClinicIDs: []string{ClinicNorth, ClinicSouth}, Available: true},
	{ID: "doc-3002", Name: "Dr. Samuel Chen", Email: DoctorChenEmail, Specialty: "Cardiology", ClinicIDs: []string{ClinicNorth}, Available: false},
	{ID: "doc-3003", Name: "Dr. Amara Nwosu", Email: DoctorNwosuEmail, Specialty: "Pulmonology", ClinicIDs: []string{ClinicSouth}, Available: true},
}
