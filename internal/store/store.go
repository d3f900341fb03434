// Package store is the persistence adapter for users, their plan history,
// the system event log and the client session.
//
// Two implementations share the same contract: GormStore (postgres, server
// deployment) and MemoryStore (client-only deployments and tests). No call
// spans more than one logical write, so callers must tolerate partial
// completion such as a user update succeeding while the log write fails.
package store

import (
	"context"
	"time"

	"saska-advisor-go/internal/models"
)

const DefaultLogRetention = 1000

type UserRepository interface {
	FindAll(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Create fails with models.ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Update merges patch into the stored record; models.ErrNotFound if absent.
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	// PrependPlan stores plan as the newest history entry of the user.
	PrependPlan(ctx context.Context, id string, plan models.Plan) (*models.User, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
}

type LogRepository interface {
	FindAll(ctx context.Context) ([]models.SystemLog, error)
	FindRecent(ctx context.Context, limit int) ([]models.SystemLog, error)
	// Create inserts at the head and trims the log to the retention cap.
	Create(ctx context.Context, typ models.LogType, userID, details string) (*models.SystemLog, error)
}

// SessionStore holds at most one current user, without password material.
type SessionStore interface {
	Get(ctx context.Context) (*models.User, error)
	Set(ctx context.Context, user *models.User) error
	Clear(ctx context.Context) error
}

type Store interface {
	Users() UserRepository
	Logs() LogRepository
}

// Backup is the admin export of the whole store.
type Backup struct {
	Users     []models.User      `json:"users"`
	Logs      []models.SystemLog `json:"logs"`
	Timestamp time.Time          `json:"timestamp"`
}

// Export snapshots users (sanitized) and logs.
func Export(ctx context.Context, s Store) (*Backup, error) {
	users, err := s.Users().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.Logs().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return &Backup{Users: users, Logs: logs, Timestamp: time.Now().UTC()}, nil
}

type options struct {
	retention int
	session   SessionStore
	now       func() time.Time
}

type Option func(*options)

// WithRetention caps the number of retained log entries.
func WithRetention(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retention = n
		}
	}
}

// WithSession attaches the session store refreshed on updates of its subject.
func WithSession(s SessionStore) Option {
	return func(o *options) { o.session = s }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{retention: DefaultLogRetention, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// refreshSession keeps the session copy in sync when its subject changes.
// Failures are ignored: the record write has already happened.
func (o *options) refreshSession(ctx context.Context, updated *models.User) {
	if o.session == nil || updated == nil {
		return
	}
	current, err := o.session.Get(ctx)
	if err != nil || current == nil || current.ID != updated.ID {
		return
	}
	_ = o.session.Set(ctx, updated.Sanitized())
}

func applyPatch(u *models.User, patch models.UserPatch) {
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
}
