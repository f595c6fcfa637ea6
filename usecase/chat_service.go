package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/protocol"
	"github.com/tandarun/coach/utils/log"
)

// Fixed user-visible texts. Every recoverable failure yields exactly one
// rendered frame and the session stays usable afterwards.
const (
	anonymousSeedText = "Welcome! Sign in and link your fitness account to get coaching grounded in your own training data."
	seedFallbackText  = "Welcome back! I couldn't load your latest training insights just now, but ask me anything about your running."
	authRequiredText  = "Please sign in to chat with the coach."
	upstreamDownText  = "Sorry, I couldn't reach the coaching model. Please try sending your message again."
	budgetText        = "The coaching assistant has reached its usage limit for now. Please try again later."
)

// errInputClosed unwinds a streaming turn when the inbound frame channel
// closes mid-stream (client went away).
var errInputClosed = errors.New("usecase: inbound channel closed")

// ConnInfo describes the connection a chat session belongs to.
type ConnInfo struct {
	UserID string
	Access domain.AccessLevel
}

// ChatService owns the per-connection chat lifecycle: it classifies
// inbound frames, drives the completion client, forwards deltas as
// incremental frames and finalizes assistant messages in the session.
type ChatService struct {
	completion domain.Completion
	seeds      domain.SeedProvider
	renderer   Renderer
}

func NewChatService(completion domain.Completion, seeds domain.SeedProvider, renderer Renderer) *ChatService {
	return &ChatService{
		completion: completion,
		seeds:      seeds,
		renderer:   renderer,
	}
}

// Run drives one connection until ctx is cancelled or the inbound
// channel closes. Frames written to out are rendered markup fragments in
// the exact order they must reach the client; the transport is expected
// to preserve that order.
//
// Run is the session's single writer. All work for a turn happens
// inline, so at most one completion request is ever in flight.
func (s *ChatService) Run(ctx context.Context, conn ConnInfo, in <-chan []byte, out chan<- []byte) {
	sess := NewSession()

	s.seedSession(ctx, conn, sess, out)

	for {
		select {
		case <-ctx.Done():
			sess.CancelActive()
			return
		case raw, ok := <-in:
			if !ok {
				sess.CancelActive()
				return
			}
			frame, err := protocol.ParseInbound(raw)
			if err != nil {
				log.WithCtx(ctx).Warn("Dropping malformed frame", zap.Error(err))
				continue
			}

			switch frame.Kind {
			case protocol.KindReset:
				sess.Reset()
				markup, err := s.renderer.ClearTranscript()
				if err != nil {
					log.WithCtx(ctx).Error("Rendering clear-transcript frame", zap.Error(err))
					continue
				}
				if !send(ctx, out, markup) {
					return
				}
			case protocol.KindStop:
				// Nothing in flight while awaiting input.
			case protocol.KindMessage:
				if err := s.handleTurn(ctx, conn, sess, frame.Text, in, out); err != nil {
					sess.CancelActive()
					return
				}
			}
		}
	}
}

// seedSession appends and emits the opening assistant message. A seed
// provider failure is substituted locally and never fatal.
func (s *ChatService) seedSession(ctx context.Context, conn ConnInfo, sess *Session, out chan<- []byte) {
	seed := anonymousSeedText
	if conn.Access == domain.AccessAuthenticated {
		text, err := s.seeds.SeedMessage(ctx, conn.UserID)
		if err != nil {
			log.WithCtx(ctx).Warn("Seed provider failed, substituting fixed opener", zap.Error(err))
			seed = seedFallbackText
		} else {
			seed = text
		}
	}

	sess.Append(domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.AssistantRole,
		Content: seed,
	})

	markup, err := s.renderer.MessageBubble(seed, true, "")
	if err != nil {
		log.WithCtx(ctx).Error("Rendering seed bubble", zap.Error(err))
		return
	}
	send(ctx, out, markup)
}

// handleTurn runs one user turn: echo, placeholder, completion stream,
// finalization. A non-nil return means the connection is gone; every
// recoverable failure is handled inside.
func (s *ChatService) handleTurn(ctx context.Context, conn ConnInfo, sess *Session, text string, in <-chan []byte, out chan<- []byte) error {
	sess.Append(domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.UserRole,
		Content: text,
	})
	if markup, err := s.renderer.MessageBubble(text, false, ""); err == nil {
		if !send(ctx, out, markup) {
			return ctx.Err()
		}
	} else {
		log.WithCtx(ctx).Error("Rendering user echo", zap.Error(err))
	}

	// Snapshot before the placeholder joins the history: the completion
	// input must never contain the empty in-flight message.
	history := sess.Snapshot()

	// Reserve the assistant's position in history before any content
	// arrives. The placeholder is finalized in place, never duplicated.
	messageID := uuid.NewString()
	sess.Append(domain.Message{
		ID:      messageID,
		Role:    domain.AssistantRole,
		Content: "",
	})
	if markup, err := s.renderer.MessageBubble("", true, messageID); err == nil {
		if !send(ctx, out, markup) {
			return ctx.Err()
		}
	} else {
		log.WithCtx(ctx).Error("Rendering placeholder bubble", zap.Error(err))
	}

	if conn.Access != domain.AccessAuthenticated {
		// Short-circuit: no completion call for anonymous users.
		s.finalize(ctx, sess, messageID, authRequiredText, out)
		return nil
	}

	return s.streamTurn(ctx, sess, messageID, history, in, out)
}

// streamTurn drives one completion request and consumes its deltas.
func (s *ChatService) streamTurn(ctx context.Context, sess *Session, messageID string, history []domain.Message, in <-chan []byte, out chan<- []byte) error {
	requestID := sess.BeginRequest()
	defer sess.EndRequest(requestID)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.completion.StreamCompletion(cctx, history)
	if err != nil {
		log.WithCtx(ctx).Error("Opening completion stream", zap.Error(err))
		s.finalize(ctx, sess, messageID, failureText(err), out)
		return nil
	}

	var consumed []domain.Delta

	for {
		// Cooperative cancellation, checked at the top of every
		// iteration: at most one delta already in flight may still
		// reach the client after a stop.
		if sess.Cancelled(requestID) {
			log.WithCtx(ctx).Info("Generation stopped", zap.String("request_id", requestID))
			return nil
		}

		select {
		case <-ctx.Done():
			sess.Cancel(requestID)
			return ctx.Err()

		case raw, ok := <-in:
			if !ok {
				sess.Cancel(requestID)
				return errInputClosed
			}
			frame, err := protocol.ParseInbound(raw)
			if err != nil {
				log.WithCtx(ctx).Warn("Dropping malformed frame", zap.Error(err))
				continue
			}
			if frame.Kind == protocol.KindStop {
				sess.Cancel(requestID)
				cancel()
				continue
			}
			// Only stop acts while streaming; anything else would
			// break the single-in-flight invariant.
			log.WithCtx(ctx).Warn("Ignoring frame received mid-stream", zap.String("kind", frame.Kind))

		case ev, ok := <-events:
			if !ok {
				final := AssembleDeltas(messageID, consumed)
				s.finalize(ctx, sess, messageID, final.Content, out)
				return nil
			}
			if ev.Err != nil {
				// Partial content is discarded; the user sees one
				// fixed failure sentence instead.
				log.WithCtx(ctx).Error("Completion stream failed", zap.Error(ev.Err))
				s.finalize(ctx, sess, messageID, failureText(ev.Err), out)
				return nil
			}
			consumed = append(consumed, ev.Delta)
			if ev.Delta.Text == "" {
				continue
			}
			markup, err := s.renderer.StreamAppend(messageID, ev.Delta.Text)
			if err != nil {
				log.WithCtx(ctx).Error("Rendering stream append", zap.Error(err))
				continue
			}
			if !send(ctx, out, markup) {
				sess.Cancel(requestID)
				return ctx.Err()
			}
		}
	}
}

// finalize overwrites the placeholder in the session and emits the one
// finalization frame replacing its content client-side.
func (s *ChatService) finalize(ctx context.Context, sess *Session, messageID, content string, out chan<- []byte) {
	if !sess.Finalize(messageID, content) {
		log.WithCtx(ctx).Error("Placeholder missing at finalization", zap.String("message_id", messageID))
	}
	markup, err := s.renderer.FinalMessage(messageID, content)
	if err != nil {
		log.WithCtx(ctx).Error("Rendering final message", zap.Error(err))
		return
	}
	send(ctx, out, markup)
}

func failureText(err error) string {
	if errors.Is(err, domain.ErrBudgetExceeded) {
		return budgetText
	}
	return upstreamDownText
}

// send writes one frame, suspending on transport backpressure. It
// reports false once the connection context is gone.
func send(ctx context.Context, out chan<- []byte, markup string) bool {
	select {
	case out <- []byte(markup):
		return true
	case <-ctx.Done():
		return false
	}
}
