package assessment

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps an unfinished assessment so it can be resumed.
type ProgressStore interface {
	LoadPhone(ctx context.Context) (string, error)
	SavePhone(ctx context.Context, phone string) error
	LoadBaseAnswers(ctx context.Context) (map[string]string, error)
	SaveBaseAnswers(ctx context.Context, answers map[string]string) error
	Clear(ctx context.Context) error
}

type MemoryProgress struct {
	mu      sync.Mutex
	phone   string
	answers map[string]string
}

func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{}
}

func (m *MemoryProgress) LoadPhone(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phone, nil
}

func (m *MemoryProgress) SavePhone(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phone = phone
	return nil
}

func (m *MemoryProgress) LoadBaseAnswers(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMap(m.answers), nil
}

func (m *MemoryProgress) SaveBaseAnswers(ctx context.Context, answers map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = copyMap(answers)
	return nil
}

func (m *MemoryProgress) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phone = ""
	m.answers = nil
	return nil
}

// DefaultProgressTTL bounds how long an abandoned assessment stays resumable
// on the server.
const DefaultProgressTTL = 30 * 24 * time.Hour

// RedisProgress stores one owner's progress under saska:progress:<owner>:*.
type RedisProgress struct {
	rdb   *redis.Client
	owner string
	ttl   time.Duration
}

func NewRedisProgress(rdb *redis.Client, owner string, ttl time.Duration) *RedisProgress {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &RedisProgress{rdb: rdb, owner: owner, ttl: ttl}
}

func (r *RedisProgress) key(field string) string {
	return "saska:progress:" + r.owner + ":" + field
}

func (r *RedisProgress) LoadPhone(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, r.key("phone")).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (r *RedisProgress) SavePhone(ctx context.Context, phone string) error {
	return r.rdb.Set(ctx, r.key("phone"), phone, r.ttl).Err()
}

func (r *RedisProgress) LoadBaseAnswers(ctx context.Context) (map[string]string, error) {
	v, err := r.rdb.Get(ctx, r.key("base_answers")).Bytes()
	if err == redis.Nil {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	answers := map[string]string{}
	if err := json.Unmarshal(v, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *RedisProgress) SaveBaseAnswers(ctx context.Context, answers map[string]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key("base_answers"), data, r.ttl).Err()
}

func (r *RedisProgress) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key("phone"), r.key("base_answers")).Err()
}

// ProgressFactory returns the progress store of one user.
type ProgressFactory func(owner string) ProgressStore

// RedisProgressFactory keys progress by owner in redis.
func RedisProgressFactory(rdb *redis.Client, ttl time.Duration) ProgressFactory {
	return func(owner string) ProgressStore { return NewRedisProgress(rdb, owner, ttl) }
}

// MemoryProgressFactory keeps one MemoryProgress per owner for the life of
// the process.
func MemoryProgressFactory() ProgressFactory {
	var (
		mu     sync.Mutex
		owners = map[string]*MemoryProgress{}
	)
	return func(owner string) ProgressStore {
		mu.Lock()
		defer mu.Unlock()
		p, ok := owners[owner]
		if !ok {
			p = NewMemoryProgress()
			owners[owner] = p
		}
		return p
	}
}

var (
	_ ProgressStore = (*MemoryProgress)(nil)
	_ ProgressStore = (*RedisProgress)(nil)
)
