package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"saska-advisor-go/internal/config"
	"saska-advisor-go/internal/models"
)

type fakeProvider struct {
	generate func(ctx context.Context, system, prompt string) (string, error)
	chat     func(ctx context.Context, system string, history []ChatMessage, message string) (string, error)
	describe func(ctx context.Context, instruction, mimeType string, data []byte) (string, error)
}

func (f fakeProvider) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	if f.generate != nil {
		return f.generate(ctx, system, prompt)
	}
	return "", errors.New("generate not implemented")
}

func (f fakeProvider) Chat(ctx context.Context, system string, history []ChatMessage, message string) (string, error) {
	if f.chat != nil {
		return f.chat(ctx, system, history, message)
	}
	return "", errors.New("chat not implemented")
}

func (f fakeProvider) Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
	if f.describe != nil {
		return f.describe(ctx, instruction, mimeType, data)
	}
	return "", errors.New("describe not implemented")
}

func newGateway(t *testing.T, p Provider) *Gateway {
	t.Helper()
	g, err := NewGateway(p, GatewayOptions{Locale: "fa", AlgorithmTag: "TEST-1", MaxImageBytes: 1024, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return g
}

const validPlan = "```json\n" + `{
  "calories": 2400,
  "macros": {"protein": 160, "carbs": 250, "fats": 70},
  "goal": "muscle",
  "supplements": [
    {"name": "Creatine", "category": "Performance", "reason": "strength", "usage": "daily", "dosage": "5g", "priority": "High"}
  ],
  "vitamins": ["D3"],
  "explanation": "because",
  "mealSuggestions": ["oats"]
}` + "\n```"

func TestGeneratePlan(t *testing.T) {
	var system string
	g := newGateway(t, fakeProvider{generate: func(ctx context.Context, s, prompt string) (string, error) {
		system = s
		assert.Contains(t, prompt, "age: 30")
		return validPlan, nil
	}})

	plan, err := g.GeneratePlan(context.Background(), "age: 30")
	require.NoError(t, err)
	assert.Equal(t, 2400.0, plan.Calories)
	assert.Equal(t, 160.0, plan.Macros.Protein)
	require.Len(t, plan.Supplements, 1)
	assert.Equal(t, models.CategoryPerformance, plan.Supplements[0].Category)
	assert.True(t, models.ValidBodyCode(plan.BodyCode), plan.BodyCode)
	assert.Equal(t, "TEST-1", plan.AlgorithmVersion)
	assert.Contains(t, system, "Persian")
}

func TestGeneratePlan_Failures(t *testing.T) {
	cases := map[string]fakeProvider{
		"provider error": {generate: func(context.Context, string, string) (string, error) {
			return "", errors.New("boom")
		}},
		"not json": {generate: func(context.Context, string, string) (string, error) {
			return "I cannot help with that", nil
		}},
		"schema violation": {generate: func(context.Context, string, string) (string, error) {
			return `{"calories": "lots", "macros": {}}`, nil
		}},
		"bad enum": {generate: func(context.Context, string, string) (string, error) {
			return `{"calories":1,"macros":{"protein":1,"carbs":1,"fats":1},"supplements":[{"name":"x","category":"Magic","reason":"","usage":"","dosage":"","priority":"High"}],"vitamins":[],"explanation":"","mealSuggestions":[]}`, nil
		}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newGateway(t, p).GeneratePlan(context.Background(), "x")
			require.ErrorIs(t, err, models.ErrUpstream)
		})
	}
}

func TestGeneratePlan_KeepsValidBodyCode(t *testing.T) {
	g := newGateway(t, fakeProvider{generate: func(context.Context, string, string) (string, error) {
		return `{"bodyCode":"SK-1234-Z","algorithmVersion":"M-2","calories":1,"macros":{"protein":1,"carbs":1,"fats":1},"supplements":[],"vitamins":[],"explanation":"","mealSuggestions":[]}`, nil
	}})
	plan, err := g.GeneratePlan(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "SK-1234-Z", plan.BodyCode)
	assert.Equal(t, "M-2", plan.AlgorithmVersion)
}

func TestNextQuestion(t *testing.T) {
	g := newGateway(t, fakeProvider{generate: func(ctx context.Context, system, prompt string) (string, error) {
		assert.Contains(t, prompt, "Q: sleep?")
		return `{"text":" How many meals? ","options":["2"," ","3"]}`, nil
	}})
	q := g.NextQuestion(context.Background(), []InterviewStep{{Question: "sleep?", Answer: "7h"}}, "age: 30")
	assert.Equal(t, "How many meals?", q.Text)
	assert.Equal(t, []string{"2", "3"}, q.Options)
}

func TestNextQuestion_FallsBack(t *testing.T) {
	fallback := FallbackQuestion(language.Persian)
	cases := map[string]fakeProvider{
		"upstream 500": {generate: func(context.Context, string, string) (string, error) {
			return "", errors.New("gemini error 500")
		}},
		"malformed": {generate: func(context.Context, string, string) (string, error) {
			return "{not json", nil
		}},
		"empty text": {generate: func(context.Context, string, string) (string, error) {
			return `{"text":"   "}`, nil
		}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			q := newGateway(t, p).NextQuestion(context.Background(), nil, "")
			assert.Equal(t, fallback, q)
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		g := newGateway(t, fakeProvider{generate: func(context.Context, string, string) (string, error) {
			called = true
			return `{"text":"x"}`, nil
		}})
		q := g.NextQuestion(ctx, nil, "")
		assert.False(t, called)
		assert.NotEmpty(t, q.Text)
	})
}

func TestChat(t *testing.T) {
	g := newGateway(t, fakeProvider{chat: func(ctx context.Context, system string, history []ChatMessage, message string) (string, error) {
		assert.Contains(t, system, "Persian-speaking")
		return " salam ", nil
	}})
	out, err := g.Chat(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "salam", out)

	_, err = g.Chat(context.Background(), nil, " ")
	require.ErrorIs(t, err, models.ErrValidation)

	failing := newGateway(t, fakeProvider{})
	_, err = failing.Chat(context.Background(), nil, "hi")
	require.ErrorIs(t, err, models.ErrUpstream)
}

func TestChatFallbackText(t *testing.T) {
	assert.Equal(t, "خطا در ارتباط با سرور. لطفاً دوباره تلاش کنید.", ChatFallbackText("fa"))
	assert.Equal(t, "Could not reach the server. Please try again.", ChatFallbackText("en-US"))
	assert.Equal(t, ChatFallbackText("fa"), ChatFallbackText("!!"))
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestAnalyzeImage(t *testing.T) {
	var gotMime, gotInstruction string
	g := newGateway(t, fakeProvider{describe: func(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
		gotMime, gotInstruction = mimeType, instruction
		return "about 400 kcal", nil
	}})

	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	out, err := g.AnalyzeImage(context.Background(), "data:image/png;base64,"+encoded, "")
	require.NoError(t, err)
	assert.Equal(t, "about 400 kcal", out)
	assert.Equal(t, "image/png", gotMime)
	assert.Contains(t, gotInstruction, "Persian")

	_, err = g.AnalyzeImage(context.Background(), "%%%", "x")
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = g.AnalyzeImage(context.Background(), base64.StdEncoding.EncodeToString([]byte("plain text")), "x")
	require.ErrorIs(t, err, models.ErrValidation)
	_, err = g.AnalyzeImage(context.Background(), base64.StdEncoding.EncodeToString(make([]byte, 2048)), "x")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := &config.Config{AIProvider: "openai", OpenAIKey: "sk", ReqTimeoutSec: 5, AILocale: "en"}
	g, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, g.provider)
	assert.Equal(t, "English", g.LocaleName())

	cfg = &config.Config{AIProvider: "gemini", GeminiKey: "k", ReqTimeoutSec: 5}
	g, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	gp, ok := g.provider.(*GeminiProvider)
	require.True(t, ok)
	assert.Equal(t, cfg.RequestTimeout(), gp.client.Timeout)

	_, err = New(&config.Config{AIProvider: "claude"}, zerolog.Nop())
	require.Error(t, err)
	_, err = New(&config.Config{AIProvider: "gemini"}, zerolog.Nop())
	require.Error(t, err)
}
