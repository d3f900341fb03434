package events

import (
	"context"

	"github.com/rs/zerolog"

	"saska-advisor-go/internal/models"
	"saska-advisor-go/internal/store"
)

// Mirror wraps a store so every log entry it writes is also published.
// Publish failures are logged; the stored entry stands.
func Mirror(s store.Store, pub Publisher, log zerolog.Logger) store.Store {
	return &mirroredStore{Store: s, logs: mirroredLogs{LogRepository: s.Logs(), pub: pub, log: log}}
}

type mirroredStore struct {
	store.Store
	logs mirroredLogs
}

func (m *mirroredStore) Logs() store.LogRepository { return m.logs }

type mirroredLogs struct {
	store.LogRepository
	pub Publisher
	log zerolog.Logger
}

func (m mirroredLogs) Create(ctx context.Context, typ models.LogType, userID, details string) (*models.SystemLog, error) {
	entry, err := m.LogRepository.Create(ctx, typ, userID, details)
	if entry == nil {
		return entry, err
	}
	if perr := m.pub.Publish(ctx, *entry); perr != nil {
		m.log.Warn().Err(perr).Str("type", string(entry.Type)).Msg("publish system log")
	}
	return entry, err
}
