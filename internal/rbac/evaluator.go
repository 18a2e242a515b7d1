package rbac

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/rbac"
)

// GetDefaultPermissions resolves the session profile for a role from the
// static table. Values outside the closed role set get an all-none profile.
func GetDefaultPermissions(role rbac.Role, userID string, clinicIDs []string) rbac.UserPermissions {
	perms := rbac.UserPermissions{
		UserID:      userID,
		Role:        role,
		Permissions: defaultTable.row(role),
	}
	if clinicIDs != nil {
		perms.ClinicIDs = slices.Clone(clinicIDs)
	}
	return perms
}

// HasPermission reports whether perms satisfies required on resource.
//
// When ownerID names the acting user, anything below full is allowed without
// consulting the table; full-level operations always go through the table.
func HasPermission(perms rbac.UserPermissions, resource rbac.ResourceType, required rbac.PermissionLevel, ownerID string) bool {
	if ownerID != "" && ownerID == perms.UserID && required < rbac.LevelFull {
		return true
	}
	return perms.Level(resource).AtLeast(required)
}

// CanAccessClinic reports whether perms may act within clinicID
func CanAccessClinic(perms rbac.UserPermissions, clinicID string) bool {
	if perms.Role == rbac.RoleAdministrator {
		return true
	}
	if perms.ClinicIDs == nil {
		return false
	}
	return perms.HasClinic(clinicID)
}

// HIPAADecision applies the operation-specific handling rules without any side effect
func HIPAADecision(operation string, perms rbac.UserPermissions, resource rbac.ResourceType) bool {
	switch operation {
	case rbac.OperationExport, rbac.OperationPrint, rbac.OperationEmail:
		return perms.Role == rbac.RoleAdministrator || perms.Role == rbac.RoleDoctor
	case rbac.OperationDelete:
		return perms.Role == rbac.RoleAdministrator
	default:
		return HasPermission(perms, resource, rbac.LevelWrite, "")
	}
}

// CanViewPatientData reports whether perms may see the records of patientID
func CanViewPatientData(patientID string, perms rbac.UserPermissions) bool {
	switch perms.Role {
	case rbac.RoleAdministrator, rbac.RoleDoctor:
		return true
	case rbac.RolePatient:
		return patientID != "" && patientID == perms.UserID
	case rbac.RoleStaff:
		return HasPermission(perms, rbac.ResourcePatientRecord, rbac.LevelRead, "")
	default:
		return false
	}
}

// CanViewPatientRecord reports whether perms may see one row owned by
// patientID and held at clinicID. Beyond CanViewPatientData, doctors and staff
// only see rows from their own clinics. Patients see their own rows anywhere.
func CanViewPatientRecord(patientID, clinicID string, perms rbac.UserPermissions) bool {
	if !CanViewPatientData(patientID, perms) {
		return false
	}
	switch perms.Role {
	case rbac.RoleAdministrator, rbac.RolePatient:
		return true
	default:
		return clinicID == "" || CanAccessClinic(perms, clinicID)
	}
}

// GetDashboardRoute returns the landing route for role
func GetDashboardRoute(role rbac.Role) string {
	switch role {
	case rbac.RoleAdministrator:
		return rbac.RouteAdminDashboard
	case rbac.RoleDoctor:
		return rbac.RouteDoctorDashboard
	case rbac.RolePatient:
		return rbac.RoutePatientDashboard
	case rbac.RoleStaff:
		return rbac.RouteStaffDashboard
	default:
		return rbac.RouteRoot
	}
}

// Evaluator wraps the pure decision functions with audit emission and
// decision metrics. Construct one per process and share it.
type Evaluator struct {
	sink     rbac.AuditSink
	recorder rbac.DecisionRecorder
	logger   *logger.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithAuditSink sets where HIPAA checks are recorded
func WithAuditSink(sink rbac.AuditSink) Option {
	return func(e *Evaluator) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithDecisionRecorder sets the metrics observer for decisions
func WithDecisionRecorder(recorder rbac.DecisionRecorder) Option {
	return func(e *Evaluator) {
		e.recorder = recorder
	}
}

// WithLogger sets the logger used to report sink failures
func WithLogger(log *logger.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithClock overrides the time source for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an evaluator. Without WithAuditSink, records are dropped.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		sink:   NopAuditSink{},
		logger: logger.Discard(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultPermissions is GetDefaultPermissions
func (e *Evaluator) DefaultPermissions(role rbac.Role, userID string, clinicIDs []string) rbac.UserPermissions {
	return GetDefaultPermissions(role, userID, clinicIDs)
}

// HasPermission is the package-level HasPermission, counted in metrics
func (e *Evaluator) HasPermission(perms rbac.UserPermissions, resource rbac.ResourceType, required rbac.PermissionLevel, ownerID string) bool {
	allowed := HasPermission(perms, resource, required, ownerID)
	e.recordDecision(perms.Role, resource, required, allowed)
	return allowed
}

// CanAccessClinic is the package-level CanAccessClinic
func (e *Evaluator) CanAccessClinic(perms rbac.UserPermissions, clinicID string) bool {
	return CanAccessClinic(perms, clinicID)
}

// CanViewPatientData is the package-level CanViewPatientData
func (e *Evaluator) CanViewPatientData(patientID string, perms rbac.UserPermissions) bool {
	return CanViewPatientData(patientID, perms)
}

// CanViewPatientRecord is the package-level CanViewPatientRecord
func (e *Evaluator) CanViewPatientRecord(patientID, clinicID string, perms rbac.UserPermissions) bool {
	return CanViewPatientRecord(patientID, clinicID, perms)
}

// IsHIPAACompliant records an audit entry for the attempted operation and
// then returns the HIPAADecision. The record is emitted on every call,
// whatever the outcome; a failing sink is logged and otherwise ignored.
func (e *Evaluator) IsHIPAACompliant(ctx context.Context, operation string, perms rbac.UserPermissions, resource rbac.ResourceType, metadata map[string]interface{}) bool {
	record := &rbac.AuditRecord{
		ID:           e.newID(),
		EventType:    rbac.AuditEventHIPAACheck,
		Timestamp:    e.now().UTC(),
		Operation:    operation,
		UserID:       perms.UserID,
		Role:         perms.Role,
		ResourceType: resource,
		ReadAllowed:  HasPermission(perms, resource, rbac.LevelRead, ""),
		Metadata:     metadata,
	}

	err := e.sink.Record(ctx, record)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("operation", operation).Warn("Failed to record HIPAA audit event")
	}
	if e.recorder != nil {
		e.recorder.RecordAuditEvent(rbac.AuditEventHIPAACheck, err == nil)
	}

	return HIPAADecision(operation, perms, resource)
}

// Authorize returns nil when perms satisfies required on resource, and a
// contextualized ErrInsufficientPrivileges otherwise.
func (e *Evaluator) Authorize(perms rbac.UserPermissions, resource rbac.ResourceType, required rbac.PermissionLevel, ownerID string) error {
	if e.HasPermission(perms, resource, required, ownerID) {
		return nil
	}
	return rbac.ErrInsufficientPrivileges.WithContext(perms.UserID, resource, required)
}

// AuthorizeClinic returns nil when perms may act within clinicID
func (e *Evaluator) AuthorizeClinic(perms rbac.UserPermissions, clinicID string) error {
	if CanAccessClinic(perms, clinicID) {
		return nil
	}
	clone := *rbac.ErrClinicScope
	clone.UserID = perms.UserID
	clone.Message = "user is not assigned to clinic " + clinicID
	return &clone
}

func (e *Evaluator) recordDecision(role rbac.Role, resource rbac.ResourceType, required rbac.PermissionLevel, allowed bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordPermissionDecision(role.String(), resource.String(), required.String(), allowed)
}
