// Package openai provides the request/response types and HTTP client for
// OpenAI-compatible chat completion APIs such as Groq.
package openai

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature *float32                `json:"temperature,omitempty"`
	TopP        *float32                `json:"top_p,omitempty"`
	Stop        []string                `json:"stop,omitempty"`
	User        string                  `json:"user,omitempty"`
}

// ChatCompletionMessage represents a message in the chat completion request/response.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError contains error details returned by the upstream API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// errorMessagePaths are tried in order to find a human-readable cause in an
// error body. Upstreams disagree on the shape, so several are accepted.
var errorMessagePaths = []string{
	"error.message",
	"error.0.message",
	"0.error.message",
	"message",
	"detail",
	"error",
}

// ParseErrorResponse extracts an APIError from an upstream error body.
// It returns nil if the body carries no recognizable message.
func ParseErrorResponse(statusCode int, data []byte) *APIError {
	if !gjson.ValidBytes(data) {
		return nil
	}

	result := gjson.ParseBytes(data)
	for _, path := range errorMessagePaths {
		msg := result.Get(path)
		if msg.Type != gjson.String || strings.TrimSpace(msg.String()) == "" {
			continue
		}
		return &APIError{
			StatusCode: statusCode,
			Message:    strings.TrimSpace(msg.String()),
			Type:       result.Get("error.type").String(),
			Code:       result.Get("error.code").String(),
		}
	}
	return nil
}
