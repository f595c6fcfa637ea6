package usecase

import (
	"github.com/google/uuid"

	"github.com/tandarun/coach/domain"
)

// Session is the per-connection conversation state. It lives only in
// connection memory and dies with the connection.
//
// The owning connection handler is the only writer, so no locking is
// needed; the handler must never run two logical turns concurrently.
type Session struct {
	messages        []domain.Message
	activeRequestID string
	cancelled       map[string]struct{}
}

func NewSession() *Session {
	return &Session{
		cancelled: make(map[string]struct{}),
	}
}

// Append adds a message to the history. Content is opaque text; there
// are no validation failures.
func (s *Session) Append(msg domain.Message) {
	s.messages = append(s.messages, msg)
}

// Snapshot returns a read-only copy of the history for sending to the
// completion client.
func (s *Session) Snapshot() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears the history. Clearing an already-empty history is a
// no-op.
func (s *Session) Reset() {
	s.messages = s.messages[:0]
}

// Finalize overwrites the content of the message with the given id in
// place. It reports whether a message with that id exists.
func (s *Session) Finalize(messageID, content string) bool {
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Content = content
			return true
		}
	}
	return false
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *Session) Last() (domain.Message, bool) {
	if len(s.messages) == 0 {
		return domain.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// BeginRequest marks a new in-flight completion request and returns its
// id. At most one request is in flight at a time.
func (s *Session) BeginRequest() string {
	s.activeRequestID = uuid.NewString()
	return s.activeRequestID
}

// EndRequest clears the in-flight marker for the given request.
func (s *Session) EndRequest(requestID string) {
	if s.activeRequestID == requestID {
		s.activeRequestID = ""
	}
}

// InFlight reports whether a completion request is currently active.
func (s *Session) InFlight() bool {
	return s.activeRequestID != ""
}

// Cancel marks the given request as cancelled. The transition is
// one-way: once cancelled, a request id stays cancelled.
func (s *Session) Cancel(requestID string) {
	if requestID == "" {
		return
	}
	s.cancelled[requestID] = struct{}{}
}

// CancelActive cancels whatever request is currently in flight, if any.
func (s *Session) CancelActive() {
	s.Cancel(s.activeRequestID)
}

// Cancelled reports whether the given request was cancelled.
func (s *Session) Cancelled(requestID string) bool {
	_, ok := s.cancelled[requestID]
	return ok
}
