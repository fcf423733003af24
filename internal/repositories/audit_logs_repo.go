package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rentdesk/internal/models"

	"github.com/google/uuid"
)

// AuditLogsRepository is append-only: there is no update or delete.
type AuditLogsRepository interface {
	// Create a new audit log entry
	Create(ctx context.Context, auditLog *models.AuditLog) error

	// List audit logs with filtering options
	List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db DBTX
}

func NewAuditLogsRepo(db DBTX) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, auditLog *models.AuditLog) error {
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now().UTC()
	}
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, entity_type, entity_id, action, old_values, new_values, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// Marshal JSONB fields
	var newValuesBytes, oldValuesBytes []byte
	var err error

	if auditLog.NewValues != nil {
		newValuesBytes, err = json.Marshal(auditLog.NewValues)
		if err != nil {
			return fmt.Errorf("failed to marshal new_values: %w", err)
		}
	}

	if auditLog.OldValues != nil {
		oldValuesBytes, err = json.Marshal(auditLog.OldValues)
		if err != nil {
			return fmt.Errorf("failed to marshal old_values: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, query,
		auditLog.ID,
		auditLog.OrganizationID,
		auditLog.EntityType,
		auditLog.EntityID,
		auditLog.Action,
		oldValuesBytes,
		newValuesBytes,
		auditLog.ActorID,
		auditLog.Reason,
		auditLog.CreatedAt,
	)

	return err
}

func (r *auditLogsRepo) List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}

	query := `
		SELECT id, organization_id, entity_type, entity_id, action, old_values, new_values, actor_id, reason, created_at
		FROM audit_logs
		WHERE 1 = 1
	`

	var args []interface{}
	argIdx := 0

	// Build WHERE clauses based on filters
	if filters.OrganizationID != nil {
		argIdx++
		query += fmt.Sprintf(" AND organization_id = $%d", argIdx)
		args = append(args, *filters.OrganizationID)
	}

	if filters.EntityType != nil {
		argIdx++
		query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
		args = append(args, *filters.EntityType)
	}

	if filters.Action != nil {
		argIdx++
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, *filters.Action)
	}

	if filters.ActorID != nil {
		argIdx++
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, *filters.ActorID)
	}

	if filters.StartDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filters.StartDate)
	}

	if filters.EndDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filters.EndDate)
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		argIdx++
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			argIdx++
			query += fmt.Sprintf(" OFFSET $%d", argIdx)
			args = append(args, filters.Offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auditLogs []*models.AuditLog
	for rows.Next() {
		auditLog := &models.AuditLog{}
		var oldValuesBytes, newValuesBytes []byte

		err := rows.Scan(
			&auditLog.ID,
			&auditLog.OrganizationID,
			&auditLog.EntityType,
			&auditLog.EntityID,
			&auditLog.Action,
			&oldValuesBytes,
			&newValuesBytes,
			&auditLog.ActorID,
			&auditLog.Reason,
			&auditLog.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(newValuesBytes) > 0 {
			if err := json.Unmarshal(newValuesBytes, &auditLog.NewValues); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new_values: %w", err)
			}
		}
		if len(oldValuesBytes) > 0 {
			if err := json.Unmarshal(oldValuesBytes, &auditLog.OldValues); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old_values: %w", err)
			}
		}

		auditLogs = append(auditLogs, auditLog)
	}

	return auditLogs, rows.Err()
}
