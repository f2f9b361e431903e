package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/socialx/agent/internal/models"
)

// ErrProfileNotFound indicates no personality profile has been learned yet.
var ErrProfileNotFound = errors.New("personality profile not found")

// PersonalityRepository stores the learned personality profile. The agent
// keeps a single current profile; saving replaces it.
type PersonalityRepository struct {
	db *sql.DB
}

// NewPersonalityRepository creates a new personality repository.
func NewPersonalityRepository(db *sql.DB) *PersonalityRepository {
	return &PersonalityRepository{db: db}
}

// Save upserts the profile, replacing any existing one.
func (r *PersonalityRepository) Save(ctx context.Context, profile *models.PersonalityProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.UpdatedAt = time.Now()

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	// Single-profile table: clear and insert inside one transaction.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM personality_profiles"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear previous profile: %w", err)
	}

	query := `
		INSERT INTO personality_profiles (id, profile, sample_count, updated_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, profile.ID, data, profile.SampleCount, profile.UpdatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}

	return nil
}

// Get returns the current profile, or ErrProfileNotFound if none exists.
func (r *PersonalityRepository) Get(ctx context.Context) (*models.PersonalityProfile, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT profile FROM personality_profiles ORDER BY updated_at DESC LIMIT 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile models.PersonalityProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}
