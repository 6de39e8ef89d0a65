package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// AuthEventRepository persists [models.AuthEvent] history. It satisfies auth.EventRecorder.
type AuthEventRepository struct {
	db *sql.DB
}

// NewAuthEventRepository creates a new [AuthEventRepository] with the given database connection
func NewAuthEventRepository(db *sql.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// RecordAuthEvent appends event. CreatedAt defaults to now.
func (r *AuthEventRepository) RecordAuthEvent(ctx context.Context, event models.AuthEvent) error {
	if event.Kind == "" || event.Outcome == "" {
		return fmt.Errorf("%w: auth event needs a kind and an outcome", shared.ErrInvalidInput)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO auth_events (kind, grant_type, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.ExecContext(ctx, query, event.Kind, event.Grant, event.Outcome, event.Detail, event.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

// ListAuthEvents returns the most recent events, newest first. limit <= 0 returns every event.
func (r *AuthEventRepository) ListAuthEvents(ctx context.Context, limit int) ([]models.AuthEvent, error) {
	query := `
		SELECT id, kind, grant_type, outcome, detail, created_at
		FROM auth_events
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	var events []models.AuthEvent
	for rows.Next() {
		var e models.AuthEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Grant, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}
