package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saska-advisor-go/internal/assessment"
	"saska-advisor-go/internal/models"
)

func TestState_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := OpenState(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSession("tok", &models.User{ID: "u1", Email: "a@example.com", PasswordHash: "secret-hash"}))
	require.NoError(t, s.Progress().SavePhone(ctx, "09121234567"))
	require.NoError(t, s.Progress().SaveBaseAnswers(ctx, map[string]string{"1": "مرد"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"session"`)
	assert.Contains(t, string(raw), `"base_answers"`)
	assert.Contains(t, string(raw), `"phone"`)
	assert.NotContains(t, string(raw), "secret-hash")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenState(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", reopened.Token())
	u, err := reopened.Sessions().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	phone, _ := reopened.Progress().LoadPhone(ctx)
	assert.Equal(t, "09121234567", phone)
	answers, _ := reopened.Progress().LoadBaseAnswers(ctx)
	assert.Equal(t, map[string]string{"1": "مرد"}, answers)
}

func TestState_SetKeepsToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryState()
	require.NoError(t, s.SetSession("tok", &models.User{ID: "u1", Name: "old"}))
	require.NoError(t, s.Sessions().Set(ctx, &models.User{ID: "u1", Name: "new"}))

	assert.Equal(t, "tok", s.Token())
	u, _ := s.Sessions().Get(ctx)
	assert.Equal(t, "new", u.Name)

	require.NoError(t, s.Sessions().Clear(ctx))
	assert.Empty(t, s.Token())
	u, err := s.Sessions().Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestState_MissingFileIsEmpty(t *testing.T) {
	s, err := OpenState(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Token())
}

func TestState_DrivesAssessmentRestore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryState()
	require.NoError(t, s.Progress().SavePhone(ctx, "09121234567"))
	require.NoError(t, s.Progress().SaveBaseAnswers(ctx, map[string]string{"1": "زن", "2": "31"}))

	f := assessment.NewFlow(nil, s.Progress())
	require.NoError(t, f.Restore(ctx))
	snap := f.Snapshot()
	assert.Equal(t, "09121234567", snap.Phone)
	assert.Equal(t, "31", snap.BaseAnswers["2"])

	require.NoError(t, s.Progress().Clear(ctx))
	answers, _ := s.Progress().LoadBaseAnswers(ctx)
	assert.Nil(t, answers)
}
