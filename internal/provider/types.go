// Package provider defines the streaming LLM backend abstraction used by the
// generation oracle, plus a name-keyed registry of backend constructors.
package provider

import "context"

// LLMProvider defines the interface for interacting with an LLM provider.
type LLMProvider interface {
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

// ResponseFormat hints the shape of the completion.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json_object"
)

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	Model          string         `json:"model"`
	System         string         `json:"system,omitempty"`
	Messages       []Message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    *float64       `json:"temperature,omitempty"`
	ResponseFormat ResponseFormat `json:"response_format,omitempty"`
}

// Message is a single text message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StopLength is the StopReason of a completion cut off by the token cap.
const StopLength = "length"

// StreamEvent represents a single event in a streaming response.
// Type is one of "text_delta", "usage", "stop" or "error". A "stop" event
// carries the backend's StopReason when it reports one.
type StreamEvent struct {
	Type         string
	Text         string
	Error        error
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return Message{Role: "user", Content: text}
}
