package domain

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamUnavailable means the completion service could not be
	// reached or errored. Recoverable: the caller renders a failure
	// message and keeps the connection open.
	ErrUpstreamUnavailable = errors.New("coach: completion upstream unavailable")

	// ErrBudgetExceeded means the configured spend ceiling was hit before
	// the request was sent.
	ErrBudgetExceeded = errors.New("coach: completion budget exceeded")
)

// Delta is one incremental fragment of a streamed completion response.
// An empty Text is a legal no-op, not a terminator.
type Delta struct {
	Text string
}

// StreamEvent carries either a delta or the stream's terminal error.
// The event channel is closed on normal exhaustion.
type StreamEvent struct {
	Delta Delta
	Err   error
}

// Completion abstracts the chat-completion provider.
type Completion interface {
	// Generate takes a single prompt and returns the model's full reply.
	Generate(ctx context.Context, prompt string) (string, error)

	// StreamCompletion sends the full history and returns a lazy,
	// single-consumption sequence of deltas. Synchronous errors are
	// ErrBudgetExceeded or ErrUpstreamUnavailable; a mid-stream failure
	// arrives as one terminal StreamEvent with Err set.
	StreamCompletion(ctx context.Context, history []Message) (<-chan StreamEvent, error)
}
