package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

type sessionData struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type stateFile struct {
	Session     *sessionData      `json:"session,omitempty"`
	BaseAnswers map[string]string `json:"base_answers,omitempty"`
	Phone       string            `json:"phone,omitempty"`
}

// State is the client's local persistence: the current session and an
// unfinished assessment. An empty path keeps everything in memory.
type State struct {
	mu   sync.Mutex
	path string
	data stateFile
}

// DefaultStatePath is <user config dir>/saska/state.json.
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "saska", "state.json"), nil
}

func NewMemoryState() *State {
	return &State{}
}

// OpenState loads path if it exists. A missing file is an empty state.
func OpenState(path string) (*State, error) {
	s := &State{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// flushLocked writes through a temp file so a crash never leaves a torn file.
func (s *State) flushLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *State) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Session == nil {
		return ""
	}
	return s.data.Session.Token
}

// SetSession stores a fresh login. The user is sanitized before writing.
func (s *State) SetSession(token string, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Session = &sessionData{Token: token, User: user.Sanitized()}
	return s.flushLocked()
}

func (s *State) Sessions() store.SessionStore       { return stateSessions{s} }
func (s *State) Progress() assessment.ProgressStore { return stateProgress{s} }

type stateSessions struct{ s *State }

func (v stateSessions) Get(ctx context.Context) (*models.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.data.Session == nil {
		return nil, nil
	}
	return v.s.data.Session.User.Clone(), nil
}

// Set replaces the cached user and keeps the token.
func (v stateSessions) Set(ctx context.Context, user *models.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.data.Session == nil {
		v.s.data.Session = &sessionData{}
	}
	v.s.data.Session.User = user.Sanitized()
	return v.s.flushLocked()
}

func (v stateSessions) Clear(ctx context.Context) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.data.Session = nil
	return v.s.flushLocked()
}

type stateProgress struct{ s *State }

func (v stateProgress) LoadPhone(ctx context.Context) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.data.Phone, nil
}

func (v stateProgress) SavePhone(ctx context.Context, phone string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.data.Phone = phone
	return v.s.flushLocked()
}

func (v stateProgress) LoadBaseAnswers(ctx context.Context) (map[string]string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.data.BaseAnswers == nil {
		return nil, nil
	}
	out := make(map[string]string, len(v.s.data.BaseAnswers))
	for k, val := range v.s.data.BaseAnswers {
		out[k] = val
	}
	return out, nil
}

func (v stateProgress) SaveBaseAnswers(ctx context.Context, answers map[string]string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.data.BaseAnswers = make(map[string]string, len(answers))
	for k, val := range answers {
		v.s.data.BaseAnswers[k] = val
	}
	return v.s.flushLocked()
}

func (v stateProgress) Clear(ctx context.Context) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.data.Phone = ""
	v.s.data.BaseAnswers = nil
	return v.s.flushLocked()
}
