package admin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saska-advisor-go/internal/auth"
	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

func TestConversionRate(t *testing.T) {
	assert.Equal(t, 0, ConversionRate(5, 0))
	assert.Equal(t, 0, ConversionRate(0, 0))
	assert.Equal(t, 100, ConversionRate(15, 10))
	assert.Equal(t, 33, ConversionRate(1, 3))
	assert.Equal(t, 67, ConversionRate(2, 3))
	assert.Equal(t, 100, ConversionRate(10, 10))
}

type fixture struct {
	svc   *Service
	auth  *auth.Service
	store *store.MemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := store.NewMemoryStore()
	authSvc := auth.NewService(st, auth.NewTokens("secret", time.Hour), nil, zerolog.Nop())
	return fixture{svc: NewService(st, authSvc, zerolog.Nop()), auth: authSvc, store: st}
}

func (f fixture) register(t *testing.T, email, name string) *models.User {
	t.Helper()
	sess, err := f.auth.Register(context.Background(), email, "password-123", name)
	require.NoError(t, err)
	return sess.User
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalUsers)
	assert.Equal(t, 0, stats.ConversionRate)

	a := f.register(t, "a@x.io", "A")
	f.register(t, "b@x.io", "B")
	_, err = f.auth.SaveResultToHistory(ctx, a.ID, models.Plan{BodyCode: "SK-0001-A"})
	require.NoError(t, err)
	_, err = f.auth.SaveResultToHistory(ctx, a.ID, models.Plan{BodyCode: "SK-0002-B"})
	require.NoError(t, err)
	_, err = f.svc.LogEvent(ctx, models.LogWhatsAppClick, a.ID, "Clicked from Dashboard")
	require.NoError(t, err)

	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 2, stats.TotalTests)
	assert.Equal(t, 1, stats.WhatsAppClicks)
	assert.Equal(t, 50, stats.ConversionRate)
	assert.Equal(t, models.LogWhatsAppClick, stats.Logs[0].Type)
}

func TestStats_RecentLogsCapped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < RecentLogLimit+10; i++ {
		_, err := f.svc.LogEvent(ctx, models.LogWhatsAppClick, "", "")
		require.NoError(t, err)
	}
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.Logs, RecentLogLimit)
	assert.Equal(t, RecentLogLimit+10, stats.WhatsAppClicks)
	assert.Equal(t, 0, stats.ConversionRate)
}

func TestUsers_Filter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ali := f.register(t, "ali@example.com", "Ali Rezaei")
	f.register(t, "sara@example.com", "Sara")
	_, err := f.auth.SaveResultToHistory(ctx, ali.ID, models.Plan{BodyCode: "SK-4821-B"})
	require.NoError(t, err)

	all, err := f.svc.Users(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, u := range all {
		assert.Empty(t, u.PasswordHash)
	}

	for _, q := range []string{"REZAEI", "ali@", "sk-4821"} {
		got, err := f.svc.Users(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 1, q)
		assert.Equal(t, ali.ID, got[0].ID)
		assert.Equal(t, "SK-4821-B", got[0].LatestBodyCode)
		assert.Equal(t, 1, got[0].Tests)
	}

	none, err := f.svc.Users(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResetAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.register(t, "root@x.io", "Root")
	u := f.register(t, "u@x.io", "U")

	require.NoError(t, f.svc.ResetPassword(ctx, admin.ID, u.ID, "fresh-pass-99"))
	_, err := f.auth.Login(ctx, "u@x.io", "fresh-pass-99")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteUser(ctx, admin.ID, admin.ID), models.ErrValidation)
	require.NoError(t, f.svc.DeleteUser(ctx, admin.ID, u.ID))
	require.ErrorIs(t, f.svc.DeleteUser(ctx, admin.ID, u.ID), models.ErrNotFound)

	logs, err := f.svc.Logs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.LogAdminAction, logs[0].Type)
	assert.Equal(t, admin.ID, logs[0].UserID)
}

func TestLogEvent_RejectsUnknownType(t *testing.T) {
	_, err := newFixture(t).svc.LogEvent(context.Background(), "HACK", "", "")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@x.io", "A")

	b, err := f.svc.Backup(ctx)
	require.NoError(t, err)
	require.Len(t, b.Users, 1)
	assert.Empty(t, b.Users[0].PasswordHash)
	assert.Len(t, b.Logs, 1)
}

func TestPoller_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var fetches atomic.Int32
	fetch := func(ctx context.Context) (*Stats, error) {
		if fetches.Add(1) == 2 {
			return nil, errors.New("transient")
		}
		return &Stats{TotalUsers: 1}, nil
	}

	got := make(chan *Stats, 16)
	done := make(chan error, 1)
	p := NewPoller(fetch, 5*time.Millisecond, zerolog.Nop())
	go func() {
		done <- p.Run(ctx, func(s *Stats) {
			select {
			case got <- s:
			default:
			}
		})
	}()

	<-got
	<-got
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.GreaterOrEqual(t, fetches.Load(), int32(3))
}
