package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/socialx/agent/internal/models"
)

// ActivityLogRepository provides append-only storage for the activity audit
// trail. Entries are inserted once and never updated.
type ActivityLogRepository struct {
	db *sql.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Log inserts an activity entry. Missing ID and timestamp are filled in.
func (r *ActivityLogRepository) Log(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
	}

	query := `
		INSERT INTO activity_logs (id, created_at, activity_type, description, metadata, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.ActivityType, entry.Description,
		metadata, entry.Success, nullString(entry.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}

	return nil
}

// List returns recent activity entries, newest first, optionally filtered
// by activity type.
func (r *ActivityLogRepository) List(ctx context.Context, activityType models.ActivityType, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, created_at, activity_type, description, metadata, success, error_message
		FROM activity_logs`
	args := []interface{}{}

	if activityType != "" {
		query += " WHERE activity_type = $1"
		args = append(args, activityType)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		var e models.ActivityLog
		var metadata []byte
		var errMsg sql.NullString

		err := rows.Scan(&e.ID, &e.CreatedAt, &e.ActivityType, &e.Description,
			&metadata, &e.Success, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}

		if errMsg.Valid {
			e.ErrorMessage = errMsg.String
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity logs: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan removes activity entries created before the cutoff.
func (r *ActivityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM activity_logs WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activity logs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
