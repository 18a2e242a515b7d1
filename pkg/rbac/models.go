package rbac

import (
	"slices"
	"time"
)

// UserPermissions is the resolved access profile of one authenticated session.
// It is built once at login and never mutated afterwards.
type UserPermissions struct {
	UserID      string                           `json:"user_id"`
	Role        Role                             `json:"role"`
	Permissions map[ResourceType]PermissionLevel `json:"permissions"`
	ClinicIDs   []string                         `json:"clinic_ids,omitempty"`
}

// Level returns the stored level for a resource, LevelNone when absent
func (p UserPermissions) Level(resource ResourceType) PermissionLevel {
	if p.Permissions == nil {
		return LevelNone
	}
	return p.Permissions[resource]
}

// HasClinic reports whether clinicID is in the accessible clinic list
func (p UserPermissions) HasClinic(clinicID string) bool {
	return slices.Contains(p.ClinicIDs, clinicID)
}

// Clone returns a deep copy so callers cannot mutate shared session state
func (p UserPermissions) Clone() UserPermissions {
	clone := UserPermissions{
		UserID:      p.UserID,
		Role:        p.Role,
		Permissions: make(map[ResourceType]PermissionLevel, len(p.Permissions)),
	}
	for resource, level := range p.Permissions {
		clone.Permissions[resource] = level
	}
	if p.ClinicIDs != nil {
		clone.ClinicIDs = slices.Clone(p.ClinicIDs)
	}
	return clone
}

// AuditRecord is one HIPAA compliance check emitted to an audit sink
type AuditRecord struct {
	ID           string                 `json:"id"`
	EventType    string                 `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	Operation    string                 `json:"operation"`
	UserID       string                 `json:"user_id"`
	Role         Role                   `json:"role"`
	ResourceType ResourceType           `json:"resource_type"`
	ReadAllowed  bool                   `json:"read_allowed"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// AuditFilter represents filters for audit trail queries
type AuditFilter struct {
	UserID    string    `json:"user_id,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}
