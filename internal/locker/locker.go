// Package locker сериализует операции одного пользователя.
// Два одновременно закончившихся таймера не должны оба прочитать старый
// дневной счётчик и начислить монеты дважды сверх лимита.
//
// RedisLocker работает между несколькими экземплярами бэкенда,
// LocalLocker: внутри одного процесса (когда REDIS_ADDR не задан).
package locker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
)

// Locker выдаёт эксклюзивную блокировку по ключу.
// Возвращённую функцию unlock нужно вызвать ровно один раз.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Key собирает ключ блокировки: Key("wallet", 42) → "wallet:42".
func Key(scope string, userID int64) string {
	return fmt.Sprintf("%s:%d", scope, userID)
}

// --- Локальная блокировка ---

// LocalLocker: блокировки в памяти процесса.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // буфер 1: занят, если в канале есть значение
	refs int
}

// NewLocalLocker создаёт локальный локер.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, fmt.Errorf("%w: %v", common.ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

// release освобождает слот и удаляет его из карты, когда ждать больше некому.
func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// --- Блокировка в Redis ---

// unlockScript удаляет ключ, только если он всё ещё принадлежит нам.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker: распределённая блокировка SET NX PX с токеном владельца.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // Страховка: блокировка сама истечёт, если процесс упал
	retry  time.Duration // Пауза между попытками захвата
}

// NewRedisLocker создаёт распределённый локер.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Lock пытается захватить ключ, пока не отменится контекст.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + "lock:" + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			// Истёкший контекст: это таймаут ожидания, а не сбой Redis
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("ошибка захвата блокировки %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", common.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Контекст вызова мог уже закончиться: освобождаем с собственным таймаутом.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err(); err != nil {
				log.WithError(err).WithField("key", key).Warn("Не удалось снять блокировку в Redis")
			}
		})
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ошибка генерации токена блокировки: %w", err)
	}
	return hex.EncodeToString(b), nil
}
