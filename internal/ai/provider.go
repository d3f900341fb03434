package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Provider is a one-shot call surface over a generative model API.
type Provider interface {
	// GenerateJSON asks for a single JSON document and returns the raw text.
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
	Chat(ctx context.Context, system string, history []ChatMessage, message string) (string, error)
	// Describe answers instruction about an inline image.
	Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error)
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage uses the role/parts shape the chat clients already send.
// A bare {"role","text"} object is accepted too.
type ChatMessage struct {
	Role  string     `json:"role"`
	Parts []ChatPart `json:"parts"`
}

type ChatPart struct {
	Text string `json:"text"`
}

func NewChatMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Parts: []ChatPart{{Text: text}}}
}

func (m ChatMessage) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (m *ChatMessage) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role  string     `json:"role"`
		Parts []ChatPart `json:"parts"`
		Text  string     `json:"text"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Parts = raw.Parts
	if len(m.Parts) == 0 && raw.Text != "" {
		m.Parts = []ChatPart{{Text: raw.Text}}
	}
	return nil
}

var errEmptyResponse = errors.New("empty model response")

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
