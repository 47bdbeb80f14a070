package storage

import "time"

// Event is one completed turn: the user's message and the assistant reply
// that was appended for it. Events are appended in chronological order and
// are never read back into a conversation.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Profile           string    `json:"profile"`
	Outcome           string    `json:"outcome"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Model             string    `json:"model,omitempty"`
	TotalTokens       int       `json:"total_tokens,omitempty"`
}

// Recorder abstracts the turn journal.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions(from, to time.Time) ([]Event, error)
}
