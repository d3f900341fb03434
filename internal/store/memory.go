package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"saska-advisor-go/internal/models"
)

// MemoryStore keeps everything in process memory. Writers serialize on a
// single mutex; concurrent updates of the same user are last-write-wins.
type MemoryStore struct {
	mu    sync.RWMutex
	users []*models.User
	logs  []models.SystemLog // newest first
	opts  options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: buildOptions(opts)}
}

func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }
func (s *MemoryStore) Logs() LogRepository   { return memoryLogs{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) FindAll(ctx context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u.Clone())
	}
	return out, nil
}

func (r memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u := r.s.byID(id); u != nil {
		return u.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (r memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (r memoryUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return nil, models.ErrDuplicateEmail
		}
	}
	stored := user.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.JoinedAt.IsZero() {
		stored.JoinedAt = r.s.opts.now().UTC()
	}
	if stored.Role == "" {
		stored.Role = models.RoleUser
	}
	if stored.History == nil {
		stored.History = []models.Plan{}
	}
	r.s.users = append(r.s.users, stored)
	return stored.Clone(), nil
}

func (r memoryUsers) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	r.s.mu.Lock()
	u := r.s.byID(id)
	if u == nil {
		r.s.mu.Unlock()
		return nil, models.ErrNotFound
	}
	applyPatch(u, patch)
	u.UpdatedAt = r.s.opts.now().UTC()
	updated := u.Clone()
	r.s.mu.Unlock()

	r.s.opts.refreshSession(ctx, updated)
	return updated, nil
}

func (r memoryUsers) PrependPlan(ctx context.Context, id string, plan models.Plan) (*models.User, error) {
	r.s.mu.Lock()
	u := r.s.byID(id)
	if u == nil {
		r.s.mu.Unlock()
		return nil, models.ErrNotFound
	}
	p := plan.Clone()
	p.UserID = id
	if p.Date == nil {
		now := r.s.opts.now().UTC()
		p.Date = &now
	}
	u.History = append([]models.Plan{p}, u.History...)
	u.UpdatedAt = r.s.opts.now().UTC()
	updated := u.Clone()
	r.s.mu.Unlock()

	r.s.opts.refreshSession(ctx, updated)
	return updated, nil
}

func (r memoryUsers) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.users[:0]
	for _, u := range r.s.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	r.s.users = kept
	return nil
}

func (s *MemoryStore) byID(id string) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type memoryLogs struct{ s *MemoryStore }

func (r memoryLogs) FindAll(ctx context.Context) ([]models.SystemLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]models.SystemLog(nil), r.s.logs...), nil
}

func (r memoryLogs) FindRecent(ctx context.Context, limit int) ([]models.SystemLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 || limit > len(r.s.logs) {
		limit = len(r.s.logs)
	}
	return append([]models.SystemLog(nil), r.s.logs[:limit]...), nil
}

func (r memoryLogs) Create(ctx context.Context, typ models.LogType, userID, details string) (*models.SystemLog, error) {
	entry := models.SystemLog{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		Details:   details,
		Timestamp: r.s.opts.now().UTC(),
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	logs := make([]models.SystemLog, 0, len(r.s.logs)+1)
	logs = append(logs, entry)
	logs = append(logs, r.s.logs...)
	if len(logs) > r.s.opts.retention {
		logs = logs[:r.s.opts.retention]
	}
	r.s.logs = logs
	return &entry, nil
}

// MemorySession is an in-process SessionStore.
type MemorySession struct {
	mu   sync.RWMutex
	user *models.User
}

func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

func (m *MemorySession) Get(ctx context.Context) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone(), nil
}

func (m *MemorySession) Set(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user.Sanitized()
	return nil
}

func (m *MemorySession) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ SessionStore = (*MemorySession)(nil)
)
