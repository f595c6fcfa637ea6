package usecase

import (
	"strings"

	"github.com/tandarun/coach/domain"
)

// AssembleDeltas reduces the consumed delta sequence into the one final
// assistant message a non-streaming call would have returned. Empty
// fragments are no-ops; an empty sequence yields an empty-content
// message, which is a valid terminal state.
func AssembleDeltas(messageID string, deltas []domain.Delta) domain.Message {
	var b strings.Builder
	for _, d := range deltas {
		if d.Text == "" {
			continue
		}
		b.WriteString(d.Text)
	}
	return domain.Message{
		ID:      messageID,
		Role:    domain.AssistantRole,
		Content: b.String(),
	}
}
