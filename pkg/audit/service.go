// Package audit writes structured audit events. Writes are best-effort:
// callers log failures and move on, they never abort the action being
// audited.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Action names for the export pipeline.
const (
	ActionExportJobCreated = "export_job_created"
)

// Entry is a single audit event.
type Entry struct {
	Actor      string
	Action     string
	ResourceID string
	Detail     map[string]any
}

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Service persists audit events to the audit_logs table.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record writes one audit event.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor, action, resource_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.Actor, entry.Action, entry.ResourceID, detail, time.Now().UTC())
	return err
}

// Nop discards audit events; used in tests and when auditing is disabled.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry Entry) error { return nil }
