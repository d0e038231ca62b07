// Package session: service.go управляет жизненным циклом таймера
// и передаёт отработанные интервалы в кошелёк.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/wallet"
	"studygarden.ru/backend/internal/locker"
)

// Awarder: то, что сервис таймера использует из кошелька.
type Awarder interface {
	AwardSession(ctx context.Context, userID int64, sessionID uuid.UUID, start, end time.Time) (*wallet.Award, error)
	Estimate(ctx context.Context, userID int64, d time.Duration) (int64, error)
}

// Completion: итог завершённого таймера.
type Completion struct {
	Session      ActiveSession
	Award        *wallet.Award // nil, если монет нет
	LimitReached bool          // Таймер отработан, но дневной лимит уже исчерпан
}

// Service управляет таймерами пользователей.
type Service struct {
	store     Store
	awarder   Awarder
	locker    locker.Locker
	minTarget time.Duration
	maxTarget time.Duration
	now       func() time.Time
}

// NewService создаёт сервис таймеров. Длительность таймера ограничена [min, max].
func NewService(store Store, awarder Awarder, lk locker.Locker, minTarget, maxTarget time.Duration) *Service {
	return &Service{
		store:     store,
		awarder:   awarder,
		locker:    lk,
		minTarget: minTarget,
		maxTarget: maxTarget,
		now:       time.Now,
	}
}

func (s *Service) withLock(ctx context.Context, userID int64, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, locker.Key("timer", userID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Start запускает таймер на target. У пользователя может быть только один таймер.
func (s *Service) Start(ctx context.Context, userID, chatID int64, target time.Duration) (*ActiveSession, error) {
	if target < s.minTarget || target > s.maxTarget {
		return nil, common.ErrInvalidDuration
	}

	var out *ActiveSession
	err := s.withLock(ctx, userID, func() error {
		_, err := s.store.Get(ctx, userID)
		if err == nil {
			return common.ErrSessionActive
		}
		if !errors.Is(err, common.ErrNoActiveSession) {
			return err
		}

		now := s.now()
		out = &ActiveSession{
			ID:        uuid.New(),
			UserID:    userID,
			ChatID:    chatID,
			Target:    target,
			StartedAt: now,
			ResumedAt: now,
		}
		return s.store.Put(ctx, out)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"session_id": out.ID,
		"target":     target.String(),
	}).Info("Таймер запущен")
	return out, nil
}

// Pause ставит таймер на паузу. Время на паузе не засчитывается.
func (s *Service) Pause(ctx context.Context, userID int64) (*ActiveSession, error) {
	var out *ActiveSession
	err := s.withLock(ctx, userID, func() error {
		sess, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		if sess.Paused {
			return common.ErrSessionPaused
		}
		now := s.now()
		sess.Accumulated = sess.Elapsed(now)
		sess.Paused = true
		sess.PausedAt = now
		out = sess
		return s.store.Put(ctx, sess)
	})
	return out, err
}

// Resume продолжает таймер после паузы.
func (s *Service) Resume(ctx context.Context, userID int64) (*ActiveSession, error) {
	var out *ActiveSession
	err := s.withLock(ctx, userID, func() error {
		sess, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		if !sess.Paused {
			return common.ErrSessionRunning
		}
		sess.Paused = false
		sess.PausedAt = time.Time{}
		sess.ResumedAt = s.now()
		out = sess
		return s.store.Put(ctx, sess)
	})
	return out, err
}

// Status возвращает состояние таймера и прогноз монет за него.
func (s *Service) Status(ctx context.Context, userID int64) (*Status, error) {
	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := sess.StatusAt(s.now())
	coins, err := s.awarder.Estimate(ctx, userID, sess.Target)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось посчитать прогноз монет")
	}
	st.EstimatedCoins = coins
	return &st, nil
}

// Stop останавливает таймер.
// Досрочная остановка ничего не начисляет и возвращает ErrSessionIncomplete.
// Отработанный таймер начисляет монеты за интервал длиной в цель.
func (s *Service) Stop(ctx context.Context, userID int64) (*Completion, error) {
	var out *Completion
	err := s.withLock(ctx, userID, func() error {
		sess, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now()
		if !sess.Done(now) {
			if err := s.store.Delete(ctx, userID); err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"user_id":    userID,
				"session_id": sess.ID,
				"elapsed":    sess.Elapsed(now).Round(time.Second).String(),
			}).Info("Таймер остановлен досрочно")
			return common.ErrSessionIncomplete
		}

		out, err = s.complete(ctx, sess, now)
		return err
	})
	return out, err
}

// CompleteDue завершает все отработанные таймеры. Вызывается планировщиком.
// Ошибка одного таймера не мешает остальным: он будет повторён в следующий раз.
func (s *Service) CompleteDue(ctx context.Context) ([]Completion, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var done []Completion
	for _, listed := range sessions {
		if !listed.Done(s.now()) {
			continue
		}
		userID := listed.UserID
		err := s.withLock(ctx, userID, func() error {
			// Перечитываем под блокировкой: пользователь мог остановить таймер сам.
			sess, err := s.store.Get(ctx, userID)
			if err != nil {
				return err
			}
			now := s.now()
			if sess.ID != listed.ID || !sess.Done(now) {
				return nil
			}
			c, err := s.complete(ctx, sess, now)
			if err != nil {
				return err
			}
			done = append(done, *c)
			return nil
		})
		if err != nil && !errors.Is(err, common.ErrNoActiveSession) {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось завершить таймер")
		}
	}
	return done, nil
}

// complete начисляет монеты за отработанный таймер и удаляет его.
// Вызывается под блокировкой таймера.
func (s *Service) complete(ctx context.Context, sess *ActiveSession, now time.Time) (*Completion, error) {
	end := sess.FinishedAt(now)
	active := min(sess.Elapsed(now), sess.Target)
	start := end.Add(-active)

	c := &Completion{Session: *sess}
	award, err := s.awarder.AwardSession(ctx, sess.UserID, sess.ID, start, end)
	switch {
	case err == nil:
		c.Award = award
	case errors.Is(err, common.ErrDailyLimitReached):
		c.LimitReached = true
	case errors.Is(err, common.ErrSessionAlreadyAwarded):
		// Начисление уже прошло (например, упали до удаления таймера): просто убираем таймер.
	default:
		return nil, err
	}

	if err := s.store.Delete(ctx, sess.UserID); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":       sess.UserID,
		"session_id":    sess.ID,
		"limit_reached": c.LimitReached,
	}).Info("Таймер завершён")
	return c, nil
}
