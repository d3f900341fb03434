package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"saska-advisor-go/internal/admin"
	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/config"
	apihttp "saska-advisor-go/internal/http"
	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

type stubProvider struct{}

func (stubProvider) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	if len(prompt) > 0 && prompt[0] == 'B' {
		return `{"text": "How many hours do you sleep?", "options": ["<6", "6-8", ">8"]}`, nil
	}
	return `{
	  "calories": 2100,
	  "macros": {"protein": 140, "carbs": 200, "fats": 65},
	  "supplements": [{"name": "Omega-3", "category": "Health", "reason": "r", "usage": "u", "dosage": "1g", "priority": "Medium"}],
	  "vitamins": ["D3"],
	  "explanation": "ok",
	  "mealSuggestions": ["eggs"]
	}`, nil
}

func (stubProvider) Chat(ctx context.Context, system string, history []ai.ChatMessage, message string) (string, error) {
	if message == "fail" {
		return "", errors.New("down")
	}
	return "echo: " + message, nil
}

func (stubProvider) Describe(ctx context.Context, instruction, mimeType string, data []byte) (string, error) {
	return "label", nil
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass-9"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{AILocale: "fa", AlgorithmTag: "TEST-1", ReqTimeoutSec: 5, MaxImageMB: 1}
	st := store.NewMemoryStore()
	authSvc := auth.NewService(st, auth.NewTokens("test-secret", time.Hour), auth.NewMemoryDenylist(), zerolog.Nop())
	_, err := authSvc.EnsureAdmin(context.Background(), adminEmail, adminPassword, "Admin")
	require.NoError(t, err)
	gw, err := ai.NewGateway(stubProvider{}, ai.GatewayOptions{Locale: "fa", Logger: zerolog.Nop()})
	require.NoError(t, err)

	srv := httptest.NewServer(apihttp.NewServer(apihttp.Deps{
		Config:   cfg,
		Store:    st,
		Auth:     authSvc,
		Admin:    admin.NewService(st, authSvc, zerolog.Nop()),
		Gateway:  gw,
		Progress: assessment.MemoryProgressFactory(),
		Logger:   zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	c := New(srv.URL)

	require.NoError(t, c.Health(ctx))

	sess, err := c.Register(ctx, "sara@example.com", "s3cure-pass", "Sara")
	require.NoError(t, err)
	assert.Equal(t, sess.Token, c.State().Token())

	cached, err := c.State().Sessions().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sara@example.com", cached.Email)

	answers := map[string]string{"1": "زن", "2": "28", "3": "165", "4": "60", "5": "حفظ تناسب اندام"}
	plan, err := c.GeneratePlan(ctx, answers, "09121234567")
	require.NoError(t, err)
	assert.Equal(t, "09121234567", plan.PhoneNumber)

	user, err := c.SaveResult(ctx, *plan)
	require.NoError(t, err)
	require.Len(t, user.History, 1)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, plan.BodyCode, history[0].BodyCode)

	cached, _ = c.State().Sessions().Get(ctx)
	assert.Len(t, cached.History, 1)

	answer, err := c.Chat(ctx, nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", answer)

	answer, err = c.Chat(ctx, nil, "fail")
	require.Error(t, err)
	assert.Equal(t, ai.ChatFallbackText("fa"), answer)

	q := c.NextQuestion(ctx, nil, "age: 28")
	assert.Equal(t, "How many hours do you sleep?", q.Text)

	require.NoError(t, c.WhatsAppClick(ctx, "from test"))

	_, err = c.Stats(ctx)
	require.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.State().Token())
	_, err = c.Me(ctx)
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestClient_AdminFlow(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	user := New(srv.URL)
	_, err := user.Register(ctx, "sara@example.com", "s3cure-pass", "Sara")
	require.NoError(t, err)

	adm := New(srv.URL)
	sess, err := adm.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, sess.User.Role)

	stats, err := adm.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)

	users, err := adm.Users(ctx, "sara")
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, adm.ResetPassword(ctx, users[0].ID, "new-pass-99"))
	_, err = user.Login(ctx, "sara@example.com", "new-pass-99")
	require.NoError(t, err)

	logs, err := adm.Logs(ctx, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(logs), 5)

	backup, err := adm.Backup(ctx)
	require.NoError(t, err)
	assert.Len(t, backup.Users, 2)

	require.NoError(t, adm.DeleteUser(ctx, users[0].ID))
	err = adm.DeleteUser(ctx, users[0].ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestClient_LoginErrors(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	c := New(srv.URL)

	_, err := c.Login(ctx, "nobody@example.com", "whatever-1")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)

	_, err = c.Register(ctx, "bad", "s3cure-pass", "")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestClient_NextQuestionFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, WithLocale("en"))
	q := c.NextQuestion(context.Background(), nil, "")
	assert.Equal(t, ai.FallbackQuestion(language.English).Text, q.Text)
}
