package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/models"
)

// RecordSegmentOutcome upserts how one segment fared: which fallback
// tier produced its clip (or that it was omitted) and the duration the
// timing resolver settled on. Retried jobs overwrite earlier rows.
func (db *DB) RecordSegmentOutcome(ctx context.Context, outcome models.SegmentOutcome) error {
	query := `
		INSERT INTO job_segments (job_id, idx, kind, tier, omitted, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id, idx) DO UPDATE
		SET kind = EXCLUDED.kind,
		    tier = EXCLUDED.tier,
		    omitted = EXCLUDED.omitted,
		    duration_seconds = EXCLUDED.duration_seconds
	`

	_, err := db.ExecContext(
		ctx, query,
		outcome.JobID, outcome.Index, outcome.Kind,
		outcome.Tier, outcome.Omitted, outcome.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record segment outcome: %w", err)
	}
	return nil
}

// GetJobSegments returns the recorded outcomes for a job in index order.
func (db *DB) GetJobSegments(ctx context.Context, jobID uuid.UUID) ([]models.SegmentOutcome, error) {
	query := `
		SELECT job_id, idx, kind, tier, omitted, duration_seconds
		FROM job_segments
		WHERE job_id = $1
		ORDER BY idx
	`

	rows, err := db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.SegmentOutcome
	for rows.Next() {
		var o models.SegmentOutcome
		if err := rows.Scan(
			&o.JobID, &o.Index, &o.Kind, &o.Tier, &o.Omitted, &o.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
