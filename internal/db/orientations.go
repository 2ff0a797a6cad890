package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/montage/internal/models"
)

// GetOrientationPreset retrieves a stored orientation preset by name.
// Builtin presets never reach this query; callers resolve those first.
func (db *DB) GetOrientationPreset(ctx context.Context, name string) (*models.Orientation, error) {
	query := `
		SELECT name, width, height, font_size, text_y, wrap_width
		FROM orientation_presets
		WHERE name = $1
	`

	preset := &models.Orientation{}
	err := db.QueryRowContext(ctx, query, name).Scan(
		&preset.Name, &preset.Width, &preset.Height,
		&preset.FontSize, &preset.TextY, &preset.WrapWidth,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("orientation preset not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get orientation preset: %w", err)
	}

	return preset, nil
}

// ListOrientationPresets returns all stored presets ordered by name.
func (db *DB) ListOrientationPresets(ctx context.Context) ([]models.Orientation, error) {
	query := `
		SELECT name, width, height, font_size, text_y, wrap_width
		FROM orientation_presets
		ORDER BY name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orientation presets: %w", err)
	}
	defer rows.Close()

	var presets []models.Orientation
	for rows.Next() {
		var p models.Orientation
		if err := rows.Scan(
			&p.Name, &p.Width, &p.Height, &p.FontSize, &p.TextY, &p.WrapWidth,
		); err != nil {
			return nil, fmt.Errorf("failed to scan orientation preset: %w", err)
		}
		presets = append(presets, p)
	}

	return presets, rows.Err()
}

// UpsertOrientationPreset stores or replaces a custom preset. Width,
// height and the text metrics travel together; there is no partial
// update.
func (db *DB) UpsertOrientationPreset(ctx context.Context, preset models.Orientation) error {
	query := `
		INSERT INTO orientation_presets (name, width, height, font_size, text_y, wrap_width)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET width = EXCLUDED.width,
		    height = EXCLUDED.height,
		    font_size = EXCLUDED.font_size,
		    text_y = EXCLUDED.text_y,
		    wrap_width = EXCLUDED.wrap_width
	`

	_, err := db.ExecContext(
		ctx, query,
		preset.Name, preset.Width, preset.Height,
		preset.FontSize, preset.TextY, preset.WrapWidth,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert orientation preset: %w", err)
	}
	return nil
}
