package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saska-advisor-go/internal/admin"
	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/client"
	"saska-advisor-go/internal/config"
	apihttp "saska-advisor-go/internal/http"
	"saska-advisor-go/internal/store"
)

type scriptedProvider struct {
	failPlan bool
}

func (p scriptedProvider) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	if strings.HasPrefix(prompt, "Basic data:") {
		return `{"text": "How many hours do you sleep?", "options": ["<6", "6-8", ">8"]}`, nil
	}
	if p.failPlan {
		return "", errors.New("model overloaded")
	}
	return `{
	  "bodyCode": "SK-1234-A",
	  "calories": 2500,
	  "macros": {"protein": 170, "carbs": 260, "fats": 70},
	  "supplements": [{"name": "Creatine", "category": "Performance", "reason": "strength", "usage": "daily", "dosage": "5g", "priority": "High"}],
	  "vitamins": ["D3"],
	  "explanation": "fine",
	  "mealSuggestions": ["rice"]
	}`, nil
}

func (scriptedProvider) Chat(ctx context.Context, system string, history []ai.ChatMessage, message string) (string, error) {
	return "ok", nil
}

func (scriptedProvider) Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
	return "label", nil
}

func newTestApp(t *testing.T, p ai.Provider, input string) (*App, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	isTerminal = func() bool { return false }

	cfg := &config.Config{AILocale: "fa", ReqTimeoutSec: 5, MaxImageMB: 1}
	st := store.NewMemoryStore()
	authSvc := auth.NewService(st, auth.NewTokens("test-secret", time.Hour), auth.NewMemoryDenylist(), zerolog.Nop())
	gw, err := ai.NewGateway(p, ai.GatewayOptions{Locale: "fa", Logger: zerolog.Nop()})
	require.NoError(t, err)
	srv := httptest.NewServer(apihttp.NewServer(apihttp.Deps{
		Config:  cfg,
		Store:   st,
		Auth:    authSvc,
		Admin:   admin.NewService(st, authSvc, zerolog.Nop()),
		Gateway: gw,
		Logger:  zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)

	state := client.NewMemoryState()
	out := &bytes.Buffer{}
	return &App{
		api:   client.New(srv.URL, client.WithState(state)),
		state: state,
		in:    bufio.NewReader(strings.NewReader(input)),
		out:   out,
		log:   zerolog.Nop(),
	}, out
}

func lines(l ...string) string { return strings.Join(l, "\n") + "\n" }

var fullAssessment = []string{
	"09121234567", "y", // verification
	"1", "30", "180", "80", "2", // base questions
	"2", "2", "2", "2", "2", // interview
}

func TestAssess_AnonymousRun(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, scriptedProvider{}, lines(append(fullAssessment, "n")...))

	require.NoError(t, app.Assess(ctx))
	assert.Contains(t, out.String(), "Body code: SK-1234-A")
	assert.Contains(t, out.String(), "Log in to keep this plan")

	answers, err := app.state.Progress().LoadBaseAnswers(ctx)
	require.NoError(t, err)
	assert.Empty(t, answers)
	phone, _ := app.state.Progress().LoadPhone(ctx)
	assert.Equal(t, "09121234567", phone)
}

func TestAssess_SavesForSignedInUser(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, scriptedProvider{}, lines(append(fullAssessment, "y")...))
	_, err := app.api.Register(ctx, "sara@example.com", "s3cure-pass", "Sara")
	require.NoError(t, err)

	require.NoError(t, app.Assess(ctx))
	assert.Contains(t, out.String(), "Saved to your history.")
	assert.Contains(t, out.String(), "SK-1234-A")

	plans, err := app.api.History(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "180", plans[0].Answers["3"])
	assert.Contains(t, plans[0].Answers[assessment.DynamicKey(0)], "6-8")
}

func TestAssess_PlanFailureStartsOver(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, scriptedProvider{failPlan: true}, lines(fullAssessment...))

	require.NoError(t, app.Assess(ctx))
	assert.Contains(t, out.String(), "Could not generate your plan")
	assert.Contains(t, out.String(), "Progress saved")

	answers, _ := app.state.Progress().LoadBaseAnswers(ctx)
	assert.Equal(t, "80", answers["4"])
}

func TestAssess_QuitKeepsProgress(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, scriptedProvider{}, lines("09121234567", "y", "2", "abc", "41", "q"))

	require.NoError(t, app.Assess(ctx))
	assert.Contains(t, out.String(), "expects a positive number")

	answers, _ := app.state.Progress().LoadBaseAnswers(ctx)
	assert.Equal(t, map[string]string{"1": "زن", "2": "41"}, answers)
}

func TestAssess_InvalidPhone(t *testing.T) {
	app, out := newTestApp(t, scriptedProvider{}, lines("0912", "y", "q"))
	require.NoError(t, app.Assess(context.Background()))
	assert.Contains(t, out.String(), "11 digits")
}

func TestRun_Usage(t *testing.T) {
	app, _ := newTestApp(t, scriptedProvider{}, "")
	ctx := context.Background()
	assert.ErrorIs(t, app.run(ctx, nil), errUsage)
	assert.ErrorIs(t, app.run(ctx, []string{"bogus"}), errUsage)
	assert.ErrorIs(t, app.run(ctx, []string{"history"}), errNotLoggedIn)
}

func TestLoginAndWhoAmI(t *testing.T) {
	ctx := context.Background()
	app, out := newTestApp(t, scriptedProvider{}, lines("sara@example.com", "Sara", "s3cure-pass", "sara@example.com", "s3cure-pass"))

	require.NoError(t, app.Register(ctx))
	assert.Contains(t, out.String(), "Welcome, Sara!")
	require.NoError(t, app.Logout(ctx))
	require.NoError(t, app.Login(ctx))
	require.NoError(t, app.WhoAmI(ctx))
	assert.Contains(t, out.String(), "<sara@example.com> role=user plans=0")
}

func TestPickOption(t *testing.T) {
	opts := []string{"a", "b"}
	assert.Equal(t, "a", pickOption(opts, "1"))
	assert.Equal(t, "b", pickOption(opts, "2"))
	assert.Equal(t, "3", pickOption(opts, "3"))
	assert.Equal(t, "free text", pickOption(opts, "free text"))
	assert.Equal(t, "1", pickOption(nil, "1"))
}
