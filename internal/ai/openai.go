package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIProvider talks to an OpenAI-compatible chat/completions endpoint.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY missing")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIProvider{apiKey: opts.APIKey, model: model, baseURL: baseURL, http: client}, nil
}

func (c *OpenAIProvider) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, map[string]any{
		"model":           c.model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
	})
}

func (c *OpenAIProvider) Chat(ctx context.Context, system string, history []ChatMessage, message string) (string, error) {
	messages := []map[string]any{{"role": "system", "content": system}}
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		role := "user"
		if m.Role == RoleModel || m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, map[string]any{"role": role, "content": text})
	}
	messages = append(messages, map[string]any{"role": "user", "content": message})
	return c.complete(ctx, map[string]any{"model": c.model, "messages": messages})
}

func (c *OpenAIProvider) Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return c.complete(ctx, map[string]any{
		"model": c.model,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": instruction},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		}},
	})
}

func (c *OpenAIProvider) complete(ctx context.Context, body map[string]any) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bs, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llm error: %s", string(bs))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAIProvider)(nil)
