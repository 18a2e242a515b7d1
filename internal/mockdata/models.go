package mockdata

import "time"

// Appointment is a scheduled visit
type Appointment struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	ClinicID  string    `json:"clinic_id"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
}

// Patient is a registered patient summary. ID is the user id the patient
// logs in with.
type Patient struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Age         int    `json:"age"`
	ClinicID    string `json:"clinic_id"`
	Condition   string `json:"condition"`
	RiskLevel   string `json:"risk_level"`
	PrimaryCare string `json:"primary_care_doctor_id"`
}

// Doctor is a directory entry
type Doctor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Specialty string   `json:"specialty"`
	ClinicIDs []string `json:"clinic_ids"`
	Available bool     `json:"available"`
}

// ClinicMetrics is a dashboard snapshot. Each generation is a new value.
type ClinicMetrics struct {
	Generation         int64     `json:"generation"`
	GeneratedAt        time.Time `json:"generated_at"`
	ActivePatients     int       `json:"active_patients"`
	AppointmentsToday  int       `json:"appointments_today"`
	BedOccupancy       float64   `json:"bed_occupancy"`
	AverageWaitMinutes int       `json:"average_wait_minutes"`
}

// Bill is an invoice line for a patient
type Bill struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	ClinicID    string    `json:"clinic_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"due_date"`
}
