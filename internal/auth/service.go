// Package auth implements account registration, login, password management
// and session tokens on top of the store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

// Session is what register and login hand back to the caller.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Service struct {
	store    store.Store
	tokens   *Tokens
	revoked  Denylist
	sessions store.SessionStore
	log      zerolog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithSessionStore mirrors login and logout into a client-side session.
func WithSessionStore(s store.SessionStore) ServiceOption {
	return func(svc *Service) { svc.sessions = s }
}

func NewService(st store.Store, tokens *Tokens, revoked Denylist, log zerolog.Logger, opts ...ServiceOption) *Service {
	if revoked == nil {
		revoked = NewMemoryDenylist()
	}
	svc := &Service{store: st, tokens: tokens, revoked: revoked, log: log, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().Create(ctx, &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.LogRegister, user.ID, fmt.Sprintf("User %s registered", user.Name))
	return s.establish(ctx, user)
}

// Login fails with models.ErrInvalidCredentials for both an unknown email and
// a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.Users().FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !checkPassword(hash, password) {
		return nil, models.ErrInvalidCredentials
	}

	details := fmt.Sprintf("User %s logged in", user.Name)
	if user.IsAdmin() {
		details = "Admin accessed Command Center"
	}
	s.record(ctx, models.LogLogin, user.ID, details)
	return s.establish(ctx, user)
}

// Logout revokes the token for the rest of its lifetime. It never fails from
// the caller's point of view; revocation errors are only logged.
func (s *Service) Logout(ctx context.Context, token string) error {
	if s.sessions != nil {
		_ = s.sessions.Clear(ctx)
	}
	if token == "" {
		return nil
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		s.log.Warn().Err(err).Str("jti", claims.ID).Msg("revoke token")
	}
	return nil
}

// Authenticate parses a bearer token, rejects revoked ones and reloads the
// account so deleted users lose access and role changes apply immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", models.ErrUnauthorized)
	}
	user, err := s.store.Users().FindByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	claims.Role = user.Role
	return claims, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return err
	}
	if s.sessions != nil {
		if current, _ := s.sessions.Get(ctx); current != nil && current.ID == userID {
			_ = s.sessions.Clear(ctx)
		}
	}
	s.record(ctx, models.LogAdminAction, userID, fmt.Sprintf("Account %s deleted", userID))
	return nil
}

// ChangePassword requires the current password before replacing it.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, current) {
		return models.ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, userID, next); err != nil {
		return err
	}
	s.record(ctx, models.LogAdminAction, userID, "User changed their password")
	return nil
}

// ResetUserPassword is the admin variant; no current password is needed.
func (s *Service) ResetUserPassword(ctx context.Context, adminID, userID, next string) error {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, userID, next); err != nil {
		return err
	}
	s.record(ctx, models.LogAdminAction, adminID, fmt.Sprintf("Password reset for user %s", user.Email))
	return nil
}

func (s *Service) setPassword(ctx context.Context, userID, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	_, err = s.store.Users().Update(ctx, userID, models.UserPatch{PasswordHash: &hash})
	return err
}

// SaveResultToHistory stores a dated copy of plan as the newest history entry.
func (s *Service) SaveResultToHistory(ctx context.Context, userID string, plan models.Plan) (*models.User, error) {
	saved := plan.Clone()
	now := s.now().UTC()
	saved.Date = &now

	user, err := s.store.Users().PrependPlan(ctx, userID, saved)
	if err != nil {
		return nil, err
	}
	s.record(ctx, models.LogTestComplete, userID, "BodyCode: "+saved.BodyCode)
	return user.Sanitized(), nil
}

// CurrentUser reads the session; nil means not authenticated.
func CurrentUser(ctx context.Context, sessions store.SessionStore) (*models.User, error) {
	if sessions == nil {
		return nil, nil
	}
	return sessions.Get(ctx)
}

// EnsureAdmin seeds the administrator account or promotes an existing one.
// An empty email disables seeding.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	existing, err := s.store.Users().FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return existing.Sanitized(), nil
		}
		role := models.RoleAdmin
		updated, err := s.store.Users().Update(ctx, existing.ID, models.UserPatch{Role: &role})
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("email", email).Msg("promoted existing user to admin")
		return updated.Sanitized(), nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	if err := ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("admin password: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin, err := s.store.Users().Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("email", email).Msg("seeded admin account")
	return admin.Sanitized(), nil
}

func (s *Service) establish(ctx context.Context, user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	clean := user.Sanitized()
	if s.sessions != nil {
		if err := s.sessions.Set(ctx, clean); err != nil {
			return nil, err
		}
	}
	return &Session{Token: token, User: clean}, nil
}

// record writes a system log entry. The primary write already happened, so a
// failure here is logged and swallowed.
func (s *Service) record(ctx context.Context, typ models.LogType, userID, details string) {
	if _, err := s.store.Logs().Create(ctx, typ, userID, details); err != nil {
		s.log.Warn().Err(err).Str("type", string(typ)).Msg("write system log")
	}
}
