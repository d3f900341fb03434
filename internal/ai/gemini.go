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
	"net/url"
	"strings"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	CandidateCount   int     `json:"candidateCount,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiProvider(opts GeminiOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY missing")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &GeminiProvider{apiKey: opts.APIKey, model: model, baseURL: baseURL, client: client}, nil
}

func (g *GeminiProvider) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	return g.generate(ctx, geminiRequest{
		SystemInstruction: systemContent(system),
		Contents:          []geminiContent{{Role: RoleUser, Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.4,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	})
}

func (g *GeminiProvider) Chat(ctx context.Context, system string, history []ChatMessage, message string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		role := RoleUser
		if m.Role == RoleModel || m.Role == "assistant" {
			role = RoleModel
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}
	// history holds prior turns only; the new message is always appended
	contents = append(contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: message}}})
	return g.generate(ctx, geminiRequest{
		SystemInstruction: systemContent(system),
		Contents:          contents,
	})
}

func (g *GeminiProvider) Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
	return g.generate(ctx, geminiRequest{
		Contents: []geminiContent{{
			Role: RoleUser,
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
				{Text: instruction},
			},
		}},
	})
}

func (g *GeminiProvider) generate(ctx context.Context, payload geminiRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", errEmptyResponse
}

func (g *GeminiProvider) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func systemContent(system string) *geminiContent {
	if system == "" {
		return nil
	}
	return &geminiContent{Parts: []geminiPart{{Text: system}}}
}

var _ Provider = (*GeminiProvider)(nil)
