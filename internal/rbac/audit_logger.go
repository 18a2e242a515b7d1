package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/rbac"
)

// NopAuditSink drops every record
type NopAuditSink struct{}

// Record implements rbac.AuditSink
func (NopAuditSink) Record(context.Context, *rbac.AuditRecord) error {
	return nil
}

// LogAuditSink writes audit records as structured compliance log lines
type LogAuditSink struct {
	logger *logger.Logger
}

// NewLogAuditSink creates a sink backed by log
func NewLogAuditSink(log *logger.Logger) *LogAuditSink {
	return &LogAuditSink{logger: log}
}

// Record implements rbac.AuditSink
func (s *LogAuditSink) Record(ctx context.Context, record *rbac.AuditRecord) error {
	s.logger.Compliance(record.EventType, record.UserID, map[string]interface{}{
		"audit_id":      record.ID,
		"timestamp":     record.Timestamp,
		"operation":     record.Operation,
		"role":          record.Role.String(),
		"resource_type": record.ResourceType.String(),
		"read_allowed":  record.ReadAllowed,
		"metadata":      record.Metadata,
	})
	return nil
}

// MultiAuditSink fans a record out to several sinks. Every sink is called
// even when an earlier one fails.
type MultiAuditSink []rbac.AuditSink

// Record implements rbac.AuditSink
func (m MultiAuditSink) Record(ctx context.Context, record *rbac.AuditRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const auditTableSQL = `
	CREATE TABLE IF NOT EXISTS portal_audit_log (
		id VARCHAR(36) PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		operation VARCHAR(50) NOT NULL,
		user_id VARCHAR(100) NOT NULL,
		role VARCHAR(20) NOT NULL,
		resource_type VARCHAR(50) NOT NULL,
		read_allowed BOOLEAN NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_portal_audit_user_id ON portal_audit_log(user_id);
	CREATE INDEX IF NOT EXISTS idx_portal_audit_timestamp ON portal_audit_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_portal_audit_operation ON portal_audit_log(operation);
`

// PostgresAuditSink persists audit records to the portal_audit_log table
type PostgresAuditSink struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPostgresAuditSink creates a sink on an open database handle
func NewPostgresAuditSink(db *sql.DB, log *logger.Logger) *PostgresAuditSink {
	return &PostgresAuditSink{db: db, logger: log}
}

// EnsureSchema creates the audit table and its indexes if missing
func (s *PostgresAuditSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, auditTableSQL); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Record implements rbac.AuditSink
func (s *PostgresAuditSink) Record(ctx context.Context, record *rbac.AuditRecord) error {
	var metadataJSON []byte
	if record.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO portal_audit_log (id, event_type, operation, user_id, role, resource_type, read_allowed, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.EventType,
		truncate(record.Operation, rbac.MaxOperationLength),
		record.UserID,
		record.Role.String(),
		record.ResourceType.String(),
		record.ReadAllowed,
		record.Timestamp,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Trail retrieves audit records matching filter, newest first
func (s *PostgresAuditSink) Trail(ctx context.Context, filter *rbac.AuditFilter) ([]*rbac.AuditRecord, error) {
	query := `
		SELECT id, event_type, operation, user_id, role, resource_type, read_allowed, timestamp, metadata
		FROM portal_audit_log
		WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}

	if filter.Operation != "" {
		query += fmt.Sprintf(" AND operation = $%d", argIndex)
		args = append(args, filter.Operation)
		argIndex++
	}

	if filter.Resource != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argIndex)
		args = append(args, filter.Resource)
		argIndex++
	}

	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIndex)
		args = append(args, filter.StartTime)
		argIndex++
	}

	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIndex)
		args = append(args, filter.EndTime)
		argIndex++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var records []*rbac.AuditRecord
	for rows.Next() {
		record := &rbac.AuditRecord{}
		var role, resource string
		var metadataJSON []byte

		err := rows.Scan(
			&record.ID,
			&record.EventType,
			&record.Operation,
			&record.UserID,
			&role,
			&resource,
			&record.ReadAllowed,
			&record.Timestamp,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		if record.Role, err = rbac.ParseRole(role); err != nil {
			s.logger.WithError(err).Warn("Audit record has unknown role")
		}
		if record.ResourceType, err = rbac.ParseResourceType(resource); err != nil {
			s.logger.WithError(err).Warn("Audit record has unknown resource type")
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				s.logger.WithError(err).Warn("Failed to unmarshal audit record metadata")
				record.Metadata = make(map[string]interface{})
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit trail: %w", err)
	}

	return records, nil
}

// truncate cuts value to at most limit characters
func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
