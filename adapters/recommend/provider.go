// Package recommend produces the opening coaching message of a chat
// session from mined training insights.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/utils/log"
)

const (
	seedKeyPrefix   = "seed:"
	maxSeedInsights = 5
)

const seedPromptHeader = `You are a very experienced running coach opening a conversation with one of your athletes.
Write a short, friendly opening message (3-4 sentences) inviting the athlete to chat about their training.
Ground the message in the coaching insights below; pick the one or two most useful ones and mention them in plain language.
Do not use markdown or headings.`

// Provider resolves a user's seed message: cached text when fresh,
// otherwise generated from the most recent insights and cached with a
// bounded TTL. Concurrent connections may race on the cache; last
// writer wins, which is fine for recommendation text.
type Provider struct {
	completion domain.Completion
	store      domain.InsightStore
	cache      domain.Cache
	ttl        time.Duration
}

func NewProvider(completion domain.Completion, store domain.InsightStore, cache domain.Cache, ttl time.Duration) *Provider {
	return &Provider{
		completion: completion,
		store:      store,
		cache:      cache,
		ttl:        ttl,
	}
}

func (p *Provider) SeedMessage(ctx context.Context, userID string) (string, error) {
	key := seedKeyPrefix + userID

	if cached, ok, err := p.cache.Get(ctx, key); err != nil {
		log.WithCtx(ctx).Warn("Seed cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	insights, err := p.store.ListRecent(ctx, maxSeedInsights)
	if err != nil {
		return "", fmt.Errorf("loading insights for seed: %w", err)
	}

	text, err := p.completion.Generate(ctx, buildSeedPrompt(insights))
	if err != nil {
		return "", fmt.Errorf("generating seed message: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("seed generation returned empty text")
	}

	if err := p.cache.Set(ctx, key, text, p.ttl); err != nil {
		log.WithCtx(ctx).Warn("Seed cache write failed", zap.Error(err))
	}
	return text, nil
}

// insightPayload is the slice of the mined JSON document the prompt
// needs; everything else in Data is ignored.
type insightPayload struct {
	Insight struct {
		Observation string `json:"observation"`
		Outcome     string `json:"outcome"`
	} `json:"insight"`
}

func buildSeedPrompt(insights []domain.TrainingInsight) string {
	var b strings.Builder
	b.WriteString(seedPromptHeader)
	b.WriteString("\n\nCoaching insights:\n")

	count := 0
	for _, insight := range insights {
		var payload insightPayload
		if err := json.Unmarshal(insight.Data, &payload); err != nil {
			continue
		}
		if payload.Insight.Observation == "" {
			continue
		}
		count++
		fmt.Fprintf(&b, "- %s: %s\n", payload.Insight.Observation, payload.Insight.Outcome)
	}

	if count == 0 {
		b.WriteString("- (no mined insights available; open with a general question about the athlete's current training)\n")
	}
	return b.String()
}

var _ domain.SeedProvider = (*Provider)(nil)
