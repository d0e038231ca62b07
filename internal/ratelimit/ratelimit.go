// Package ratelimit ограничивает частоту запросов по ключу (user_id в боте, IP в HTTP API).
// Для каждого ключа заводится свой token bucket из golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL: через сколько бездействия ведро ключа удаляется.
const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter: набор token bucket'ов по ключам.
// limit запросов за window, всплеск не больше limit.
type Limiter[K comparable] struct {
	mu      sync.Mutex
	buckets map[K]*bucket
	every   rate.Limit
	burst   int
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New создаёт лимитер и запускает фоновую очистку старых ключей.
// Close нужно вызвать на shutdown.
func New[K comparable](limit int, window time.Duration) *Limiter[K] {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter[K]{
		buckets: make(map[K]*bucket),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Close останавливает фоновую горутину очистки.
func (l *Limiter[K]) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow сообщает, можно ли пропустить ещё один запрос ключа key.
func (l *Limiter[K]) Allow(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len: сколько ключей сейчас отслеживается.
func (l *Limiter[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter[K]) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

// evictIdle удаляет ключи, которые не появлялись дольше idleTTL.
func (l *Limiter[K]) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleTTL)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
