// Package client talks to the advisor HTTP API and keeps the local session
// and unfinished assessment in a state file.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"saska-advisor-go/internal/admin"
	"saska-advisor-go/internal/ai"
	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

// APIError is a non-2xx answer from the server. It unwraps to the matching
// models sentinel so callers can use errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "invalid_credentials":
		return models.ErrInvalidCredentials
	case e.Status == http.StatusBadRequest:
		return models.ErrValidation
	case e.Status == http.StatusConflict:
		return models.ErrDuplicateEmail
	case e.Status == http.StatusUnauthorized:
		return models.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return models.ErrForbidden
	case e.Status == http.StatusNotFound:
		return models.ErrNotFound
	case e.Status == http.StatusBadGateway, e.Status == http.StatusServiceUnavailable:
		return models.ErrUpstream
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
	state   *State
	locale  language.Tag
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithState makes the client read its token from, and persist sessions to, s.
func WithState(s *State) Option {
	return func(c *Client) { c.state = s }
}

func WithLocale(locale string) Option {
	return func(c *Client) {
		if tag, err := language.Parse(locale); err == nil {
			c.locale = tag
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		locale:  language.Persian,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state == nil {
		c.state = NewMemoryState()
	}
	return c
}

func (c *Client) State() *State { return c.state }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.state.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Code, apiErr.Message = e.Error, e.Message
		}
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*auth.Session, error) {
	var sess auth.Session
	in := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &sess); err != nil {
		return nil, err
	}
	return &sess, c.state.SetSession(sess.Token, sess.User)
}

func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	var sess auth.Session
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &sess); err != nil {
		return nil, err
	}
	return &sess, c.state.SetSession(sess.Token, sess.User)
}

// Logout always clears the local session, even when the server is
// unreachable.
func (c *Client) Logout(ctx context.Context) error {
	if c.state.Token() != "" {
		if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			c.log.Warn().Err(err).Msg("server logout failed")
		}
	}
	return c.state.Sessions().Clear(ctx)
}

// Me refreshes the cached user from the server.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, c.state.Sessions().Set(ctx, &u)
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPut, "/me/password", in, nil)
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/me", nil, nil); err != nil {
		return err
	}
	return c.state.Sessions().Clear(ctx)
}

func (c *Client) History(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	if err := c.do(ctx, http.MethodGet, "/me/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveResult stores plan in the signed-in user's history and refreshes the
// cached session with the returned user.
func (c *Client) SaveResult(ctx context.Context, plan models.Plan) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPost, "/me/history", plan, &u); err != nil {
		return nil, err
	}
	return &u, c.state.Sessions().Set(ctx, &u)
}

func (c *Client) GeneratePlan(ctx context.Context, answers map[string]string, phone string) (*models.Plan, error) {
	var plan models.Plan
	in := map[string]any{"answers": answers, "phoneNumber": phone}
	if err := c.do(ctx, http.MethodPost, "/api/ai/plan", in, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// NextQuestion satisfies assessment.QuestionSource. Transport failures fall
// back to the local fallback question.
func (c *Client) NextQuestion(ctx context.Context, history []ai.InterviewStep, baseData string) ai.Question {
	var q ai.Question
	in := map[string]any{"history": history, "baseData": baseData}
	if err := c.do(ctx, http.MethodPost, "/api/ai/question", in, &q); err != nil || strings.TrimSpace(q.Text) == "" {
		if err != nil {
			c.log.Warn().Err(err).Msg("next question failed, using fallback")
		}
		return ai.FallbackQuestion(c.locale)
	}
	return q
}

// Chat returns the model answer. On failure the answer is the localized
// error line to show in the transcript, alongside the error.
func (c *Client) Chat(ctx context.Context, history []ai.ChatMessage, message string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	in := map[string]any{"history": history, "message": message}
	if err := c.do(ctx, http.MethodPost, "/api/ai/chat", in, &out); err != nil {
		return ai.ChatFallbackText(c.locale.String()), err
	}
	return out.Answer, nil
}

func (c *Client) AnalyzeImage(ctx context.Context, image, instruction string) (string, error) {
	var out struct {
		Analysis string `json:"analysis"`
	}
	in := map[string]string{"image": image, "instruction": instruction}
	if err := c.do(ctx, http.MethodPost, "/api/ai/analyze-image", in, &out); err != nil {
		return "", err
	}
	return out.Analysis, nil
}

func (c *Client) WhatsAppClick(ctx context.Context, details string) error {
	return c.do(ctx, http.MethodPost, "/api/events/whatsapp-click", map[string]string{"details": details}, nil)
}

func (c *Client) Stats(ctx context.Context) (*admin.Stats, error) {
	var s admin.Stats
	if err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Users(ctx context.Context, query string) ([]admin.UserSummary, error) {
	path := "/admin/users"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out []admin.UserSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) User(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ResetPassword(ctx context.Context, userID, next string) error {
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID)+"/password", map[string]string{"newPassword": next}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), nil, nil)
}

func (c *Client) Logs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	var out []models.SystemLog
	if err := c.do(ctx, http.MethodGet, "/admin/logs?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Backup(ctx context.Context) (*store.Backup, error) {
	var b store.Backup
	if err := c.do(ctx, http.MethodGet, "/admin/backup", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
