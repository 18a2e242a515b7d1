package mockdata

import (
	"slices"
	"strings"

	"github.com/medrex/clinic-portal/internal/iam"
	"github.com/medrex/clinic-portal/pkg/rbac"
)

// Clinic ids
const (
	ClinicNorth = "clinic-north"
	ClinicSouth = "clinic-south"
)

// Login emails of the canned users
const (
	PatientAlvarezEmail = "maria.alvarez@example.com"
	PatientOkaforEmail  = "james.okafor@example.com"
	PatientFischerEmail = "lena.fischer@example.com"

	DoctorRamanEmail = "priya.raman@medrex.clinic"
	DoctorChenEmail  = "samuel.chen@medrex.clinic"
	DoctorNwosuEmail = "amara.nwosu@medrex.clinic"

	StaffNorthEmail = "frontdesk.north@medrex.clinic"
	StaffSouthEmail = "frontdesk.south@medrex.clinic"
)

var (
	patientAlvarez = iam.UserIDForEmail(PatientAlvarezEmail)
	patientOkafor  = iam.UserIDForEmail(PatientOkaforEmail)
	patientFischer = iam.UserIDForEmail(PatientFischerEmail)
)

var staffClinics = map[string][]string{
	StaffNorthEmail: {ClinicNorth},
	StaffSouthEmail: {ClinicSouth},
}

// ClinicAssignments resolves clinic scope at login. Doctors take the clinics
// of their directory entry and staff their desk assignment. Everyone else,
// including unknown doctors and staff, gets none.
func ClinicAssignments(email string, role rbac.Role) []string {
	email = strings.ToLower(email)
	switch role {
	case rbac.RoleDoctor:
		for _, doctor := range doctors {
			if doctor.Email == email {
				return slices.Clone(doctor.ClinicIDs)
			}
		}
	case rbac.RoleStaff:
		if clinics, ok := staffClinics[email]; ok {
			return slices.Clone(clinics)
		}
	}
	return nil
}
