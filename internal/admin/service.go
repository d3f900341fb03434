// Package admin aggregates usage statistics and exposes user management for
// the admin dashboard.
package admin

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

const RecentLogLimit = 50

type Stats struct {
	TotalUsers     int                `json:"totalUsers"`
	TotalTests     int                `json:"totalTests"`
	WhatsAppClicks int                `json:"whatsappClicks"`
	ConversionRate int                `json:"conversionRate"`
	Logs           []models.SystemLog `json:"logs"`
}

// UserSummary is the admin list row: the user without password material and
// the body code of the latest plan.
type UserSummary struct {
	*models.User
	LatestBodyCode string `json:"latestBodyCode,omitempty"`
	Tests          int    `json:"tests"`
}

// PasswordManager is the slice of the auth service admins need.
type PasswordManager interface {
	ResetUserPassword(ctx context.Context, adminID, userID, next string) error
}

type Service struct {
	store     store.Store
	passwords PasswordManager
	log       zerolog.Logger
}

func NewService(st store.Store, passwords PasswordManager, log zerolog.Logger) *Service {
	return &Service{store: st, passwords: passwords, log: log}
}

// ConversionRate is clicks per completed test as a percentage, rounded and
// clamped to [0, 100]. Zero tests yields zero.
func ConversionRate(clicks, tests int) int {
	if tests <= 0 || clicks <= 0 {
		return 0
	}
	rate := int(math.Round(float64(clicks) / float64(tests) * 100))
	return min(100, rate)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.store.Users().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.Logs().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	tests := 0
	for _, u := range users {
		tests += len(u.History)
	}
	clicks := 0
	for _, l := range logs {
		if l.Type == models.LogWhatsAppClick {
			clicks++
		}
	}
	if len(logs) > RecentLogLimit {
		logs = logs[:RecentLogLimit]
	}
	return &Stats{
		TotalUsers:     len(users),
		TotalTests:     tests,
		WhatsAppClicks: clicks,
		ConversionRate: ConversionRate(clicks, tests),
		Logs:           logs,
	}, nil
}

// Users lists accounts whose name, email or latest body code contains query,
// case-insensitively. An empty query lists everyone.
func (s *Service) Users(ctx context.Context, query string) ([]UserSummary, error) {
	users, err := s.store.Users().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]UserSummary, 0, len(users))
	for i := range users {
		u := users[i].Sanitized()
		code := u.LatestBodyCode()
		if q != "" &&
			!strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) &&
			!strings.Contains(strings.ToLower(code), q) {
			continue
		}
		out = append(out, UserSummary{User: u, LatestBodyCode: code, Tests: len(u.History)})
	}
	return out, nil
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

func (s *Service) ResetPassword(ctx context.Context, adminID, userID, next string) error {
	return s.passwords.ResetUserPassword(ctx, adminID, userID, next)
}

func (s *Service) DeleteUser(ctx context.Context, adminID, userID string) error {
	if adminID == userID {
		return fmt.Errorf("%w: admins cannot delete their own account here", models.ErrValidation)
	}
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return err
	}
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return err
	}
	s.record(ctx, models.LogAdminAction, adminID, fmt.Sprintf("Account %s deleted", userID))
	return nil
}

// LogEvent records a client-reported event such as a WhatsApp click.
func (s *Service) LogEvent(ctx context.Context, typ models.LogType, userID, details string) (*models.SystemLog, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown log type %q", models.ErrValidation, typ)
	}
	return s.store.Logs().Create(ctx, typ, userID, details)
}

func (s *Service) Logs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	return s.store.Logs().FindRecent(ctx, limit)
}

func (s *Service) Backup(ctx context.Context) (*store.Backup, error) {
	return store.Export(ctx, s.store)
}

func (s *Service) record(ctx context.Context, typ models.LogType, userID, details string) {
	if _, err := s.store.Logs().Create(ctx, typ, userID, details); err != nil {
		s.log.Warn().Err(err).Str("type", string(typ)).Msg("write system log")
	}
}

// DefaultPollInterval matches the dashboard refresh cadence.
const DefaultPollInterval = 10 * time.Second

// Poller re-fetches stats on a ticker until its context ends.
type Poller struct {
	fetch    func(ctx context.Context) (*Stats, error)
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(fetch func(ctx context.Context) (*Stats, error), interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{fetch: fetch, interval: interval, log: log}
}

// Run fetches immediately and then on every tick, handing each result to
// onStats. Fetch errors are logged and the next tick retries. Run returns
// when ctx is done and the ticker is stopped.
func (p *Poller) Run(ctx context.Context, onStats func(*Stats)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, onStats)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx, onStats)
		}
	}
}

func (p *Poller) tick(ctx context.Context, onStats func(*Stats)) {
	stats, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("poll admin stats")
		}
		return
	}
	onStats(stats)
}
