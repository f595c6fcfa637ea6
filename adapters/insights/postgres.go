// Package insights persists coaching insights mined from video
// transcripts.
package insights

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandarun/coach/domain"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// CreateSchema creates the insight table if it does not exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS training_insights (
			insight_id TEXT PRIMARY KEY,
			source_id  TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("insights: create schema: %w", err)
	}
	return nil
}

// Add upserts one mined insight, keyed by its content-derived id.
func (s *PGStore) Add(ctx context.Context, insight domain.TrainingInsight) (domain.TrainingInsight, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO training_insights (insight_id, source_id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (insight_id)
		DO UPDATE SET source_id = EXCLUDED.source_id,
		              data = EXCLUDED.data,
		              updated_at = now()
		RETURNING created_at, updated_at`,
		insight.InsightID, insight.SourceID, insight.Data,
	).Scan(&insight.CreatedAt, &insight.UpdatedAt)
	if err != nil {
		return domain.TrainingInsight{}, fmt.Errorf("insights: add: %w", err)
	}
	return insight, nil
}

// GetByID fetches one insight by its content-derived id.
func (s *PGStore) GetByID(ctx context.Context, insightID string) (domain.TrainingInsight, error) {
	var insight domain.TrainingInsight
	err := s.db.QueryRow(ctx, `
		SELECT insight_id, source_id, data, created_at, updated_at
		FROM training_insights
		WHERE insight_id = $1`,
		insightID,
	).Scan(&insight.InsightID, &insight.SourceID, &insight.Data, &insight.CreatedAt, &insight.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TrainingInsight{}, domain.ErrInsightNotFound
	}
	if err != nil {
		return domain.TrainingInsight{}, fmt.Errorf("insights: get: %w", err)
	}
	return insight, nil
}

// ListRecent returns the most recently updated insights.
func (s *PGStore) ListRecent(ctx context.Context, limit int) ([]domain.TrainingInsight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT insight_id, source_id, data, created_at, updated_at
		FROM training_insights
		ORDER BY updated_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("insights: list recent: %w", err)
	}
	defer rows.Close()

	var out []domain.TrainingInsight
	for rows.Next() {
		var insight domain.TrainingInsight
		if err := rows.Scan(&insight.InsightID, &insight.SourceID, &insight.Data, &insight.CreatedAt, &insight.UpdatedAt); err != nil {
			return nil, fmt.Errorf("insights: scan: %w", err)
		}
		out = append(out, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insights: list recent: %w", err)
	}
	return out, nil
}

var _ domain.InsightStore = (*PGStore)(nil)
