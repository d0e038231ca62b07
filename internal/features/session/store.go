// Package session: store.go хранит активные таймеры.
// RedisStore переживает перезапуск процесса, MemoryStore: для одного экземпляра и тестов.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studygarden.ru/backend/internal/common"
)

// Store: хранилище активных таймеров.
type Store interface {
	// Get возвращает таймер пользователя или ErrNoActiveSession.
	Get(ctx context.Context, userID int64) (*ActiveSession, error)
	Put(ctx context.Context, s *ActiveSession) error
	Delete(ctx context.Context, userID int64) error
	// List возвращает все активные таймеры (для фоновой проверки завершения).
	List(ctx context.Context) ([]*ActiveSession, error)
}

// retention: сколько таймер живёт в Redis сверх цели, если его никто не завершил.
const retention = 24 * time.Hour

// --- Redis ---

// RedisStore хранит таймер в ключе <prefix>timer:<user_id> (JSON)
// и ведёт множество <prefix>timers с id пользователей для List.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище таймеров в Redis.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + "timer:" + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "timers"
}

// Get читает таймер пользователя.
func (r *RedisStore) Get(ctx context.Context, userID int64) (*ActiveSession, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таймера: %w", err)
	}
	return decodeSession(raw)
}

// Put сохраняет таймер и добавляет пользователя в индекс.
func (r *RedisStore) Put(ctx context.Context, s *ActiveSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации таймера: %w", err)
	}
	ttl := s.Target + retention
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.UserID), raw, ttl)
		pipe.SAdd(ctx, r.indexKey(), s.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения таймера: %w", err)
	}
	return nil
}

// Delete удаляет таймер пользователя.
func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(userID))
		pipe.SRem(ctx, r.indexKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления таймера: %w", err)
	}
	return nil
}

// List читает все таймеры из индекса. Истёкшие по TTL ключи вычищаются из индекса.
func (r *RedisStore) List(ctx context.Context) ([]*ActiveSession, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса таймеров: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.prefix + "timer:" + m
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таймеров: %w", err)
	}

	var (
		out   []*ActiveSession
		stale []any
	)
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		s, err := decodeSession([]byte(str))
		if err != nil {
			stale = append(stale, members[i])
			continue
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, r.indexKey(), stale...).Err(); err != nil {
			return out, fmt.Errorf("ошибка очистки индекса таймеров: %w", err)
		}
	}
	return out, nil
}

func decodeSession(raw []byte) (*ActiveSession, error) {
	var s ActiveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("повреждённый таймер: %w", err)
	}
	return &s, nil
}

// --- Память ---

// MemoryStore: таймеры в памяти процесса.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]ActiveSession
}

// NewMemoryStore создаёт хранилище таймеров в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]ActiveSession)}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*ActiveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, common.ErrNoActiveSession
	}
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*ActiveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ActiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		s := s
		out = append(out, &s)
	}
	return out, nil
}
