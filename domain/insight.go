package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrInsightNotFound = errors.New("coach: insight not found")

// TrainingInsight is one coaching observation mined from a video
// transcript. Data holds the raw insight payload (observation, outcome,
// the fields it is computed from) as produced by the miner.
type TrainingInsight struct {
	InsightID string          `json:"insight_id"`
	SourceID  string          `json:"source_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// InsightStore persists mined insights.
type InsightStore interface {
	CreateSchema(ctx context.Context) error
	Add(ctx context.Context, insight TrainingInsight) (TrainingInsight, error)
	// GetByID returns ErrInsightNotFound when no insight has that id.
	GetByID(ctx context.Context, insightID string) (TrainingInsight, error)
	ListRecent(ctx context.Context, limit int) ([]TrainingInsight, error)
}
