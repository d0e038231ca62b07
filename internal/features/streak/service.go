// Package streak: service.go показывает серию и рассылает напоминания
// тем, у кого длинная серия под угрозой.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/reward"
)

// Service управляет чтением серий и напоминаниями.
type Service struct {
	repo              Reader
	policy            reward.Policy
	loc               *time.Location
	reminderThreshold int           // С какой длины серии напоминать
	inactiveFor       time.Duration // Сколько без учёбы, прежде чем напоминать
	now               func() time.Time
}

// NewService создаёт новый сервис стриков.
func NewService(repo Reader, policy reward.Policy, loc *time.Location, reminderThreshold int, inactiveFor time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:              repo,
		policy:            policy,
		loc:               loc,
		reminderThreshold: reminderThreshold,
		inactiveFor:       inactiveFor,
		now:               time.Now,
	}
}

// GetStreak возвращает состояние серии пользователя.
// Пользователь без записи получает пустую серию.
func (s *Service) GetStreak(ctx context.Context, userID int64) (View, error) {
	rec, err := s.repo.Get(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		rec, err = reward.StreakRecord{UserID: userID, BonusMultiplier: 1.0}, nil
	}
	if err != nil {
		return View{}, err
	}
	return s.view(rec, s.now().In(s.loc)), nil
}

func (s *Service) view(rec reward.StreakRecord, today time.Time) View {
	v := View{
		Record:          rec,
		BonusActive:     s.policy.BonusActive(rec),
		BonusMultiplier: s.policy.MultiplierFor(rec.CurrentStreak),
		DaysToBonus:     max(s.policy.StreakBonusThreshold-rec.CurrentStreak, 0),
	}
	if rec.CurrentStreak > 0 && !rec.LastStudyDate.IsZero() {
		gap := reward.DaysBetween(rec.LastStudyDate, today)
		v.StudiedToday = gap == 0
		v.Alive = gap == 0 || gap == 1
	}
	return v
}

// SendReminders отправляет напоминания пользователям с длинными сериями.
// Напоминаем, если вчера учился, сегодня ещё нет, и прошло не меньше inactiveFor.
// Одно напоминание в день. Запускается кроном каждый час.
func (s *Service) SendReminders(ctx context.Context, sendFunc func(ctx context.Context, userID int64, text string) error) (int, error) {
	now := s.now().In(s.loc)
	dayStart := common.StartOfDay(now)

	candidates, err := s.repo.ReminderCandidates(ctx, s.reminderThreshold, dayStart)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, c := range candidates {
		// Серия, прерванная раньше вчерашнего дня, уже потеряна: напоминать поздно.
		if reward.DaysBetween(c.LastStudyDate, now) != 1 {
			continue
		}
		if now.Sub(c.LastStudyDate) < s.inactiveFor {
			continue
		}

		msg := fmt.Sprintf("⚠️ У тебя огонек %d %s! Позанимайся сегодня хотя бы 10 минут, чтобы не потерять серию и бонус.",
			c.CurrentStreak, common.PluralizeDays(c.CurrentStreak))
		if err := sendFunc(ctx, c.UserID, msg); err != nil {
			log.WithError(err).WithField("user_id", c.UserID).Debug("Не удалось отправить напоминание")
			continue
		}

		if err := s.repo.MarkReminderSent(ctx, c.UserID, now); err != nil {
			log.WithError(err).WithField("user_id", c.UserID).Error("Ошибка отметки напоминания")
			continue
		}
		sent++
	}

	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"sent":       sent,
	}).Info("Напоминания о сериях отправлены")
	return sent, nil
}
