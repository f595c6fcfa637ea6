package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/utils/log"
)

// Config is the completion client's static configuration. It is wired
// once at startup and never renegotiated per call.
type Config struct {
	Model        string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// GeminiCompletion implements domain.Completion on top of the Gemini
// API. Non-streaming calls go through the shared cache when enabled;
// streamed conversations never do.
type GeminiCompletion struct {
	client *genai.Client
	config Config
	ledger *BudgetLedger
	cache  domain.Cache
	hasher domain.Hasher
}

func NewGeminiCompletion(ctx context.Context, config Config, ledger *BudgetLedger, cache domain.Cache, hasher domain.Hasher) (*GeminiCompletion, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiCompletion{
		client: client,
		config: config,
		ledger: ledger,
		cache:  cache,
		hasher: hasher,
	}, nil
}

// Generate takes a single prompt and returns the model's full reply.
func (g *GeminiCompletion) Generate(ctx context.Context, prompt string) (string, error) {
	var cacheKey string
	if g.config.CacheEnabled && g.cache != nil {
		cacheKey = "completion:" + g.hasher.Hash([]byte(g.config.Model+"\x00"+prompt))
		if cached, ok, err := g.cache.Get(ctx, cacheKey); err != nil {
			log.WithCtx(ctx).Warn("Completion cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	if err := g.ledger.Reserve(); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %v", domain.ErrUpstreamUnavailable, err)
	}

	text := resp.Text()
	if cacheKey != "" {
		if err := g.cache.Set(ctx, cacheKey, text, g.config.CacheTTL); err != nil {
			log.WithCtx(ctx).Warn("Completion cache write failed", zap.Error(err))
		}
	}
	return text, nil
}

// StreamCompletion sends the full history and returns a channel of
// deltas. The channel is unbuffered: the consumer paces the stream and
// a cancelled context releases the producer immediately.
func (g *GeminiCompletion) StreamCompletion(ctx context.Context, history []domain.Message) (<-chan domain.StreamEvent, error) {
	if err := g.ledger.Reserve(); err != nil {
		return nil, err
	}

	contents := buildContents(history)

	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.config.Model, contents, nil) {
			if err != nil {
				if ctx.Err() != nil {
					// Consumer cancelled; not an upstream failure.
					return
				}
				select {
				case events <- domain.StreamEvent{Err: fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case events <- domain.StreamEvent{Delta: domain.Delta{Text: resp.Text()}}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// buildContents maps the session history to the request payload.
// Empty-content messages are skipped: the API rejects requests that
// carry an empty text part.
func buildContents(history []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		role := genai.RoleUser
		if msg.Role == domain.AssistantRole {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: msg.Content},
			},
		})
	}
	return contents
}

var _ domain.Completion = (*GeminiCompletion)(nil)
