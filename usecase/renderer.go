package usecase

// Renderer turns protocol events into the pre-rendered markup fragments
// sent to the client. Exact markup is a template concern; the handler
// only needs the three operations plus the transcript-clear frame.
type Renderer interface {
	// MessageBubble renders a complete message bubble. isSystem
	// distinguishes coach/system bubbles from the user's own echo.
	MessageBubble(text string, isSystem bool, messageID string) (string, error)

	// StreamAppend renders an incremental fragment appended to the
	// bubble identified by messageID.
	StreamAppend(messageID, fragment string) (string, error)

	// FinalMessage renders the finalized content replacing the
	// placeholder bubble identified by messageID.
	FinalMessage(messageID, text string) (string, error)

	// ClearTranscript renders the frame instructing the client to
	// empty its displayed transcript.
	ClearTranscript() (string, error)
}
