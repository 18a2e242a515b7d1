package rbac

import "context"

// AuditSink receives compliance audit records. Emission is best effort:
// an error from Record never changes an access decision.
type AuditSink interface {
	Record(ctx context.Context, record *AuditRecord) error
}

// AuditSinkFunc adapts a function to the AuditSink interface
type AuditSinkFunc func(ctx context.Context, record *AuditRecord) error

// Record calls f(ctx, record)
func (f AuditSinkFunc) Record(ctx context.Context, record *AuditRecord) error {
	return f(ctx, record)
}

// AuditTrail reads previously recorded audit records
type AuditTrail interface {
	Trail(ctx context.Context, filter *AuditFilter) ([]*AuditRecord, error)
}

// DecisionRecorder observes permission decisions, typically for metrics
type DecisionRecorder interface {
	RecordPermissionDecision(role, resource, level string, allowed bool)
	RecordAuditEvent(eventType string, success bool)
}
