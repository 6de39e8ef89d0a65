package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// ExportRunRepository persists [models.ExportRun] history. It satisfies tasks.RunRecorder.
type ExportRunRepository struct {
	db *sql.DB
}

// NewExportRunRepository creates a new [ExportRunRepository] with the given database connection
func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// CreateRun inserts run, generating an ID when it has none.
func (r *ExportRunRepository) CreateRun(ctx context.Context, run *models.ExportRun) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.Status == "" {
		run.Status = models.ExportRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO export_runs (id, grant_type, output_dir, format, status, archive_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Grant, run.OutputDir, run.Format, string(run.Status), run.ArchivePath,
		run.StartedAt.UTC(), nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	return nil
}

// AddResult records the outcome of one resource. Recording the same resource twice keeps the latest outcome.
func (r *ExportRunRepository) AddResult(ctx context.Context, runID string, result models.ResourceResult) error {
	if result.Resource == "" {
		return fmt.Errorf("%w: result has no resource", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO export_results (run_id, resource, item_count, declared_total, file_path, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, resource) DO UPDATE SET
			item_count = excluded.item_count,
			declared_total = excluded.declared_total,
			file_path = excluded.file_path,
			error = excluded.error,
			duration_ms = excluded.duration_ms
	`

	_, err := r.db.ExecContext(ctx, query,
		runID, result.Resource, result.Items, result.Total, result.FilePath, result.Err,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", result.Resource, err)
	}
	return nil
}

// FinishRun stores the final status, archive path, and finish time of run.
func (r *ExportRunRepository) FinishRun(ctx context.Context, run *models.ExportRun) error {
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	query := `
		UPDATE export_runs
		SET status = ?, archive_path = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(run.Status), run.ArchivePath, run.FinishedAt.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish export run: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: export run %s", shared.ErrNotFound, run.ID))
}

// Get retrieves a run and its results by ID.
func (r *ExportRunRepository) Get(ctx context.Context, id string) (*models.ExportRun, error) {
	query := `
		SELECT id, grant_type, output_dir, format, status, archive_path, started_at, finished_at
		FROM export_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: export run %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Results, err = r.results(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns every run.
func (r *ExportRunRepository) List(ctx context.Context, limit int) ([]*models.ExportRun, error) {
	query := `
		SELECT id, grant_type, output_dir, format, status, archive_path, started_at, finished_at
		FROM export_runs
		ORDER BY started_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}

	var runs []*models.ExportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, run := range runs {
		if run.Results, err = r.results(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Delete removes a run and, through the foreign key, its results.
func (r *ExportRunRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM export_results WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete export results: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM export_runs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete export run: %w", err)
		}
		return expectOne(result, fmt.Errorf("%w: export run %s", shared.ErrNotFound, id))
	})
}

func (r *ExportRunRepository) results(ctx context.Context, runID string) ([]models.ResourceResult, error) {
	query := `
		SELECT resource, item_count, declared_total, file_path, error, duration_ms
		FROM export_results
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query export results: %w", err)
	}
	defer rows.Close()

	results := []models.ResourceResult{}
	for rows.Next() {
		var (
			res        models.ResourceResult
			durationMS int64
		)
		if err := rows.Scan(&res.Resource, &res.Items, &res.Total, &res.FilePath, &res.Err, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan export result: %w", err)
		}
		res.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

// scanRun scans one export_runs row. [sql.ErrNoRows] is returned unwrapped.
func scanRun(row scanner) (*models.ExportRun, error) {
	var (
		run        models.ExportRun
		status     string
		finishedAt sql.NullTime
	)

	err := row.Scan(&run.ID, &run.Grant, &run.OutputDir, &run.Format, &status, &run.ArchivePath, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan export run: %w", err)
	}

	run.Status = models.ExportStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
