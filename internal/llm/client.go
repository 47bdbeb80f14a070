package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the remote completion boundary. Any transport, auth, quota or
// decoding problem is reported through the error.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
