// Package ai is the boundary to the external generative model: plan
// generation, interview questions, chat and image analysis.
package ai

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"saska-advisor-go/internal/config"
	"saska-advisor-go/internal/models"
)

//go:embed prompts/plan.txt
var planPrompt string

//go:embed prompts/question.txt
var questionPrompt string

//go:embed prompts/chat.txt
var chatPrompt string

//go:embed prompts/image.txt
var imagePrompt string

//go:embed plan.schema.json
var planSchema string

const defaultTimeout = 30 * time.Second

// Question is one dynamic interview question.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// InterviewStep is an answered dynamic question.
type InterviewStep struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type GatewayOptions struct {
	Locale        string
	AlgorithmTag  string
	MaxImageBytes int64
	Logger        zerolog.Logger
}

type Gateway struct {
	provider   Provider
	schema     *gojsonschema.Schema
	locale     language.Tag
	localeName string
	algorithm  string
	maxImage   int64
	log        zerolog.Logger
}

func NewGateway(p Provider, opts GatewayOptions) (*Gateway, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
	if err != nil {
		return nil, fmt.Errorf("load plan schema: %w", err)
	}
	tag, err := language.Parse(strings.TrimSpace(opts.Locale))
	if err != nil {
		tag = language.Persian
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		name = "Persian"
	}
	algorithm := opts.AlgorithmTag
	if algorithm == "" {
		algorithm = "SASKA-4.0"
	}
	return &Gateway{
		provider:   p,
		schema:     schema,
		locale:     tag,
		localeName: name,
		algorithm:  algorithm,
		maxImage:   opts.MaxImageBytes,
		log:        opts.Logger,
	}, nil
}

// New builds the gateway for the provider named by AI_PROVIDER.
func New(cfg *config.Config, log zerolog.Logger) (*Gateway, error) {
	client := &http.Client{Timeout: cfg.RequestTimeout()}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.AIProvider) {
	case "openai":
		p, err = NewOpenAIProvider(OpenAIOptions{
			APIKey:     cfg.OpenAIKey,
			Model:      cfg.OpenAILlmModel,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: client,
		})
	case "gemini", "":
		p, err = NewGeminiProvider(GeminiOptions{
			APIKey:     cfg.GeminiKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: client,
		})
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
	if err != nil {
		return nil, err
	}
	return NewGateway(p, GatewayOptions{
		Locale:        cfg.AILocale,
		AlgorithmTag:  cfg.AlgorithmTag,
		MaxImageBytes: cfg.MaxImageMB * 1024 * 1024,
		Logger:        log,
	})
}

func (g *Gateway) LocaleName() string { return g.localeName }

// GeneratePlan turns an assessment transcript into a validated plan. Every
// failure wraps models.ErrUpstream; nothing is retried.
func (g *Gateway) GeneratePlan(ctx context.Context, transcript string) (*models.Plan, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", models.ErrValidation)
	}

	raw, err := g.provider.GenerateJSON(ctx, fmt.Sprintf(planPrompt, g.localeName), transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	doc := extractJSONFragment(raw)
	if doc == "" {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstream, errEmptyResponse)
	}

	res, err := g.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid plan json: %v", models.ErrUpstream, err)
	}
	if !res.Valid() {
		d := []string{}
		for _, e := range res.Errors() {
			d = append(d, e.String())
		}
		return nil, fmt.Errorf("%w: plan schema: %s", models.ErrUpstream, strings.Join(d, "; "))
	}

	var plan models.Plan
	if err := json.Unmarshal([]byte(doc), &plan); err != nil {
		return nil, fmt.Errorf("%w: decode plan: %v", models.ErrUpstream, err)
	}
	if !models.ValidBodyCode(plan.BodyCode) {
		plan.BodyCode = models.NewBodyCode(models.BodyCodePrefix)
	}
	if plan.AlgorithmVersion == "" {
		plan.AlgorithmVersion = g.algorithm
	}
	if plan.Vitamins == nil {
		plan.Vitamins = models.StringArray{}
	}
	if plan.MealSuggestions == nil {
		plan.MealSuggestions = models.StringArray{}
	}
	return &plan, nil
}

// NextQuestion never fails: any provider error, malformed output or empty
// question is replaced by FallbackQuestion.
func (g *Gateway) NextQuestion(ctx context.Context, history []InterviewStep, baseData string) Question {
	q, err := g.nextQuestion(ctx, history, baseData)
	if err != nil {
		g.log.Warn().Err(err).Int("asked", len(history)).Msg("dynamic question failed, using fallback")
		return FallbackQuestion(g.locale)
	}
	return q
}

func (g *Gateway) nextQuestion(ctx context.Context, history []InterviewStep, baseData string) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}

	var sb strings.Builder
	sb.WriteString("Basic data:\n")
	sb.WriteString(baseData)
	if len(history) > 0 {
		sb.WriteString("\n\nQuestions already asked:\n")
		for _, step := range history {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", step.Question, step.Answer)
		}
	}

	raw, err := g.provider.GenerateJSON(ctx, fmt.Sprintf(questionPrompt, g.localeName), sb.String())
	if err != nil {
		return Question{}, err
	}
	doc := extractJSONFragment(raw)
	if doc == "" {
		return Question{}, errEmptyResponse
	}
	var q Question
	if err := json.Unmarshal([]byte(doc), &q); err != nil {
		return Question{}, err
	}
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Question{}, errors.New("question text is empty")
	}
	opts := q.Options[:0]
	for _, o := range q.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	q.Options = opts
	if len(q.Options) == 0 {
		q.Options = nil
	}
	return q, nil
}

func (g *Gateway) Chat(ctx context.Context, history []ChatMessage, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message required", models.ErrValidation)
	}
	answer, err := g.provider.Chat(ctx, fmt.Sprintf(chatPrompt, g.localeName), history, message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return strings.TrimSpace(answer), nil
}

// AnalyzeImage accepts raw base64 or a data URL.
func (g *Gateway) AnalyzeImage(ctx context.Context, base64Image, instruction string) (string, error) {
	encoded := strings.TrimSpace(base64Image)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return "", fmt.Errorf("%w: image required", models.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: image is not valid base64", models.ErrValidation)
	}
	if g.maxImage > 0 && int64(len(data)) > g.maxImage {
		return "", fmt.Errorf("%w: image too large", models.ErrValidation)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %s", models.ErrValidation, mime)
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = fmt.Sprintf(imagePrompt, g.localeName)
	}

	text, err := g.provider.Describe(ctx, instruction, mime, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return strings.TrimSpace(text), nil
}
