package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tandarun/coach/domain"
)

type fakeCompletion struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompletion) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeCompletion) StreamCompletion(ctx context.Context, history []domain.Message) (<-chan domain.StreamEvent, error) {
	panic("not used by the seed provider")
}

type fakeStore struct {
	insights []domain.TrainingInsight
	err      error
}

func (f *fakeStore) CreateSchema(ctx context.Context) error { return nil }

func (f *fakeStore) Add(ctx context.Context, insight domain.TrainingInsight) (domain.TrainingInsight, error) {
	return insight, nil
}

func (f *fakeStore) GetByID(ctx context.Context, insightID string) (domain.TrainingInsight, error) {
	for _, insight := range f.insights {
		if insight.InsightID == insightID {
			return insight, nil
		}
	}
	return domain.TrainingInsight{}, domain.ErrInsightNotFound
}

func (f *fakeStore) ListRecent(ctx context.Context, limit int) ([]domain.TrainingInsight, error) {
	return f.insights, f.err
}

type memCache struct {
	values map[string]string
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

func insightRow(t *testing.T, observation, outcome string) domain.TrainingInsight {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"insight": map[string]string{
			"observation": observation,
			"outcome":     outcome,
		},
	})
	require.NoError(t, err)
	return domain.TrainingInsight{InsightID: observation, SourceID: "vid", Data: data}
}

func TestSeedMessageGeneratesAndCaches(t *testing.T) {
	completion := &fakeCompletion{reply: "Welcome back, let's look at your weekly volume."}
	store := &fakeStore{insights: []domain.TrainingInsight{
		insightRow(t, "weekly km is trending up", "higher volume predicts faster marathons"),
	}}
	cache := newMemCache()

	p := NewProvider(completion, store, cache, time.Hour)

	text, err := p.SeedMessage(context.Background(), "runner-1")
	require.NoError(t, err)
	require.Equal(t, "Welcome back, let's look at your weekly volume.", text)

	require.Len(t, completion.prompts, 1)
	require.True(t, strings.Contains(completion.prompts[0], "weekly km is trending up"))

	// Second call is served from the cache, no new completion.
	text2, err := p.SeedMessage(context.Background(), "runner-1")
	require.NoError(t, err)
	require.Equal(t, text, text2)
	require.Len(t, completion.prompts, 1)
}

func TestSeedMessageStoreFailureSurfaces(t *testing.T) {
	completion := &fakeCompletion{reply: "hi"}
	store := &fakeStore{err: errors.New("connection refused")}

	p := NewProvider(completion, store, newMemCache(), time.Hour)

	_, err := p.SeedMessage(context.Background(), "runner-1")
	require.Error(t, err)
	require.Empty(t, completion.prompts, "no completion call without insights")
}

func TestSeedPromptWithoutInsights(t *testing.T) {
	prompt := buildSeedPrompt(nil)
	require.True(t, strings.Contains(prompt, "no mined insights available"))
}
