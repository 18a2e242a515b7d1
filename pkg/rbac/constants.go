package rbac

import "strings"

// Role identifies the portal role a session was authenticated as
type Role int

// Portal roles. The set is closed; every role has a row in the default permission table.
const (
	RoleGuest Role = iota
	RoleAdministrator
	RoleDoctor
	RolePatient
	RoleStaff
)

var roleNames = map[Role]string{
	RoleAdministrator: "administrator",
	RoleDoctor:        "doctor",
	RolePatient:       "patient",
	RoleStaff:         "staff",
	RoleGuest:         "guest",
}

// AllRoles returns every role in a stable order
func AllRoles() []Role {
	return []Role{RoleAdministrator, RoleDoctor, RolePatient, RoleStaff, RoleGuest}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole converts a role name into a Role
func ParseRole(name string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for role, roleName := range roleNames {
		if roleName == normalized {
			return role, nil
		}
	}
	return RoleGuest, NewRBACError(ErrorTypeInvalidRole, ErrorCodeInvalidRole, "unrecognized role: "+name)
}

// ResourceType identifies a class of protected resource
type ResourceType int

// Protected resource classes
const (
	ResourcePatientRecord ResourceType = iota
	ResourceAppointment
	ResourceBilling
	ResourceMedicalReport
	ResourcePrescription
	ResourceStaffRecord
	ResourceClinicSettings
)

var resourceNames = map[ResourceType]string{
	ResourcePatientRecord:  "patient_record",
	ResourceAppointment:    "appointment",
	ResourceBilling:        "billing",
	ResourceMedicalReport:  "medical_report",
	ResourcePrescription:   "prescription",
	ResourceStaffRecord:    "staff_record",
	ResourceClinicSettings: "clinic_settings",
}

// AllResourceTypes returns every resource type in declaration order
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourcePatientRecord,
		ResourceAppointment,
		ResourceBilling,
		ResourceMedicalReport,
		ResourcePrescription,
		ResourceStaffRecord,
		ResourceClinicSettings,
	}
}

func (rt ResourceType) String() string {
	if name, ok := resourceNames[rt]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (rt ResourceType) MarshalText() ([]byte, error) {
	return []byte(rt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (rt *ResourceType) UnmarshalText(text []byte) error {
	resource, err := ParseResourceType(string(text))
	if err != nil {
		return err
	}
	*rt = resource
	return nil
}

// ParseResourceType converts a resource name into a ResourceType
func ParseResourceType(name string) (ResourceType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for resource, resourceName := range resourceNames {
		if resourceName == normalized {
			return resource, nil
		}
	}
	return 0, NewRBACError(ErrorTypeInvalidResource, ErrorCodeInvalidResource, "unrecognized resource type: "+name)
}

// PermissionLevel is a totally ordered access level: none < read < write < full
type PermissionLevel int

// Permission levels, ordered
const (
	LevelNone PermissionLevel = iota
	LevelRead
	LevelWrite
	LevelFull
)

var levelNames = map[PermissionLevel]string{
	LevelNone:  "none",
	LevelRead:  "read",
	LevelWrite: "write",
	LevelFull:  "full",
}

// AllPermissionLevels returns the levels in ascending order
func AllPermissionLevels() []PermissionLevel {
	return []PermissionLevel{LevelNone, LevelRead, LevelWrite, LevelFull}
}

func (l PermissionLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (l PermissionLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *PermissionLevel) UnmarshalText(text []byte) error {
	level, err := ParsePermissionLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParsePermissionLevel converts a level name into a PermissionLevel
func ParsePermissionLevel(name string) (PermissionLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if levelName == normalized {
			return level, nil
		}
	}
	return LevelNone, NewRBACError(ErrorTypeInvalidLevel, ErrorCodeInvalidLevel, "unrecognized permission level: "+name)
}

// AtLeast reports whether l satisfies the required level
func (l PermissionLevel) AtLeast(required PermissionLevel) bool {
	return l >= required
}

// HIPAA-gated operations
const (
	OperationExport = "export"
	OperationPrint  = "print"
	OperationEmail  = "email"
	OperationDelete = "delete"
	OperationView   = "view"
	OperationUpdate = "update"
)

// MaxOperationLength bounds operation names accepted for HIPAA checks; the
// audit table column holds no more
const MaxOperationLength = 50

// Dashboard routes per role
const (
	RouteAdminDashboard   = "/admin/dashboard"
	RouteDoctorDashboard  = "/doctor/dashboard"
	RoutePatientDashboard = "/patient/dashboard"
	RouteStaffDashboard   = "/staff/dashboard"
	RouteRoot             = "/"
)

// Audit event types
const (
	AuditEventHIPAACheck    = "hipaa_check"
	AuditEventAccessAttempt = "access_attempt"
)

// Error codes for RBAC operations
const (
	ErrorCodeInsufficientPrivileges = "RBAC_001"
	ErrorCodeInvalidRole            = "RBAC_002"
	ErrorCodeInvalidResource        = "RBAC_003"
	ErrorCodeInvalidLevel           = "RBAC_004"
	ErrorCodeClinicScope            = "RBAC_005"
	ErrorCodeComplianceViolation    = "RBAC_006"
)
