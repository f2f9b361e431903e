package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/socialx/agent/internal/models"
)

var (
	// ErrActionNotFound indicates the requested action does not exist.
	ErrActionNotFound = errors.New("action not found")
	// ErrActionNotCancellable indicates the action has left the pending
	// state and can no longer be cancelled.
	ErrActionNotCancellable = errors.New("action is not pending and cannot be cancelled")
)

// ActionRepository provides durable storage for scheduled actions.
type ActionRepository struct {
	db *sql.DB
}

// NewActionRepository creates a new action repository.
func NewActionRepository(db *sql.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create inserts a new pending action. A missing ID is generated; a missing
// scheduled time defaults to now (execute on the next drain pass).
func (r *ActionRepository) Create(ctx context.Context, action *models.ScheduledAction) error {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Status == "" {
		action.Status = models.ActionStatusPending
	}
	if action.ScheduledFor.IsZero() {
		action.ScheduledFor = time.Now()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal action payload: %w", err)
	}

	query := `
		INSERT INTO scheduled_actions (id, action_type, scheduled_for, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query,
		action.ID, action.ActionType, action.ScheduledFor, payload, action.Status, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// ClaimDue atomically transitions up to limit due pending actions to
// processing and returns them in execution order. The subquery locks rows
// with FOR UPDATE SKIP LOCKED so concurrent claimers never receive the same
// action; this is the only path from pending to processing.
func (r *ActionRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledAction, error) {
	query := `
		UPDATE scheduled_actions
		SET status = 'processing', claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM scheduled_actions
			WHERE status = 'pending' AND scheduled_for <= $1
			ORDER BY scheduled_for ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, action_type, scheduled_for, payload, status, error_message,
		          created_at, executed_at, claimed_at`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due actions: %w", err)
	}
	defer rows.Close()

	actions, err := scanActions(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING does not preserve subquery order.
	sortActions(actions)
	return actions, nil
}

// MarkCompleted transitions a processing action to completed.
func (r *ActionRepository) MarkCompleted(ctx context.Context, id string, executedAt time.Time) error {
	query := `
		UPDATE scheduled_actions
		SET status = 'completed', executed_at = $2, error_message = NULL
		WHERE id = $1 AND status = 'processing'`

	result, err := r.db.ExecContext(ctx, query, id, executedAt)
	if err != nil {
		return fmt.Errorf("failed to mark action completed: %w", err)
	}
	return requireRow(result, id)
}

// MarkFailed transitions a processing action to failed, recording the error.
// Failed actions are terminal and are never retried automatically.
func (r *ActionRepository) MarkFailed(ctx context.Context, id string, errMsg string, executedAt time.Time) error {
	query := `
		UPDATE scheduled_actions
		SET status = 'failed', executed_at = $2, error_message = $3
		WHERE id = $1 AND status = 'processing'`

	result, err := r.db.ExecContext(ctx, query, id, executedAt, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark action failed: %w", err)
	}
	return requireRow(result, id)
}

// Cancel transitions a pending action to cancelled. Actions in any other
// state are rejected with ErrActionNotCancellable.
func (r *ActionRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE scheduled_actions
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel action: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a missing action from one that already left pending.
	var status string
	err = r.db.QueryRowContext(ctx, "SELECT status FROM scheduled_actions WHERE id = $1", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrActionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up action: %w", err)
	}
	return ErrActionNotCancellable
}

// Get fetches a single action by ID.
func (r *ActionRepository) Get(ctx context.Context, id string) (*models.ScheduledAction, error) {
	query := `
		SELECT id, action_type, scheduled_for, payload, status, error_message,
		       created_at, executed_at, claimed_at
		FROM scheduled_actions
		WHERE id = $1`

	action, err := scanAction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return action, nil
}

// List returns actions ordered by scheduled time, optionally filtered by
// status. Limit bounds the result size.
func (r *ActionRepository) List(ctx context.Context, status models.ActionStatus, limit int) ([]*models.ScheduledAction, error) {
	query := `
		SELECT id, action_type, scheduled_for, payload, status, error_message,
		       created_at, executed_at, claimed_at
		FROM scheduled_actions`
	args := []interface{}{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY scheduled_for ASC, id ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// CountTweetsToday counts tweet-type actions created since dayStart that are
// pending or completed. Cancelled and failed tweets do not consume the
// daily cap.
func (r *ActionRepository) CountTweetsToday(ctx context.Context, dayStart time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM scheduled_actions
		WHERE action_type = 'tweet'
		  AND status IN ('pending', 'completed')
		  AND created_at >= $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, dayStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count today's tweets: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of actions in each lifecycle state.
func (r *ActionRepository) CountByStatus(ctx context.Context) (map[models.ActionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM scheduled_actions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count actions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ActionStatus]int)
	for rows.Next() {
		var status models.ActionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountStuckProcessing counts actions that have sat in processing longer
// than olderThan. Such actions indicate a crash mid-batch and require
// operator intervention; they are surfaced, never auto-recovered.
func (r *ActionRepository) CountStuckProcessing(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM scheduled_actions
		WHERE status = 'processing' AND claimed_at < $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, time.Now().Add(-olderThan)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stuck actions: %w", err)
	}
	return count, nil
}

// DeleteTerminalOlderThan removes completed, failed, and cancelled actions
// created before the cutoff. Returns the number of rows removed.
func (r *ActionRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM scheduled_actions
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old actions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("action %s is not in processing state", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(row rowScanner) (*models.ScheduledAction, error) {
	var a models.ScheduledAction
	var payload []byte
	var errMsg sql.NullString
	var executedAt, claimedAt sql.NullTime

	err := row.Scan(&a.ID, &a.ActionType, &a.ScheduledFor, &payload, &a.Status,
		&errMsg, &a.CreatedAt, &executedAt, &claimedAt)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		a.ErrorMessage = errMsg.String
	}
	if executedAt.Valid {
		a.ExecutedAt = &executedAt.Time
	}
	if claimedAt.Valid {
		a.ClaimedAt = &claimedAt.Time
	}
	a.RawPayload = payload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for action %s: %w", a.ID, err)
		}
	}

	return &a, nil
}

func scanActions(rows *sql.Rows) ([]*models.ScheduledAction, error) {
	var actions []*models.ScheduledAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}
	return actions, nil
}

func sortActions(actions []*models.ScheduledAction) {
	sort.Slice(actions, func(i, j int) bool {
		if !actions[i].ScheduledFor.Equal(actions[j].ScheduledFor) {
			return actions[i].ScheduledFor.Before(actions[j].ScheduledFor)
		}
		return actions[i].ID < actions[j].ID
	})
}
