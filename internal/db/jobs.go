package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/models"
)

func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, status, progress, message, orientation, provider, line_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.Progress, job.Message,
		job.Orientation, job.Provider, job.LineCount,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `
		SELECT
			id, status, progress, message, orientation, provider,
			line_count, output_path, error, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	job := &models.Job{}
	var outputPath sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.Progress, &job.Message,
		&job.Orientation, &job.Provider, &job.LineCount,
		&outputPath, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.OutputPath = outputPath.String
	return job, nil
}

// UpdateJobProgress mirrors a status store update into the jobs row.
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, status models.JobStatus, progress int, message string) error {
	query := `
		UPDATE jobs
		SET status = $1, progress = $2, message = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, status, progress, message, time.Now(), id)
	return err
}

func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, outputPath, message string) error {
	query := `
		UPDATE jobs
		SET status = $1, progress = 100, message = $2, output_path = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusCompleted, message, outputPath, time.Now(), id)
	return err
}

func (db *DB) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE jobs
		SET status = $1, message = $2, error = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusError, message, time.Now(), id)
	return err
}
