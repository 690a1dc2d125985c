package interfaces

import "context"

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// LLMService is the provider-agnostic chat completion interface the agents
// call through. Implementations perform their own bounded retry/backoff;
// callers treat any returned error as final.
type LLMService interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Close() error
}
