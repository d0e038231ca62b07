// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: полночный сброс дневных счётчиков,
// ежечасные напоминания о серии и поминутное завершение таймеров.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/features/session"
)

// DailyResetter обнуляет дневные счётчики монет.
type DailyResetter interface {
	ResetDaily(ctx context.Context) (int64, error)
}

// Reminder рассылает напоминания о серии.
type Reminder interface {
	SendReminders(ctx context.Context, sendFunc func(ctx context.Context, userID int64, text string) error) (int, error)
}

// TimerCompleter завершает отработанные таймеры.
type TimerCompleter interface {
	CompleteDue(ctx context.Context) ([]session.Completion, error)
}

// SendFunc отправляет сообщение в чат. nil: бот выключен, сообщать некуда.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	wallets  DailyResetter
	streaks  Reminder
	timers   TimerCompleter
	sendFunc SendFunc
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(loc *time.Location, wallets DailyResetter, streaks Reminder, timers TimerCompleter, sendFunc SendFunc) *Scheduler {
	logger := cron.PrintfLogger(log.WithField("component", "cron"))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:     c,
		loc:      loc,
		wallets:  wallets,
		streaks:  streaks,
		timers:   timers,
		sendFunc: sendFunc,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		run  func(context.Context)
	}{
		// Ежедневный сброс в 00:00 по APP_TIMEZONE
		{"0 0 * * *", s.resetDaily},
		// Напоминания каждый час
		{"0 * * * *", s.sendReminders},
		{"@every 1m", s.completeTimers},
	}
	for _, j := range jobs {
		run := j.run
		if _, err := s.cron.AddFunc(j.spec, func() { run(ctx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) resetDaily(ctx context.Context) {
	log.Info("[CRON] Сброс дневных счётчиков монет")
	n, err := s.wallets.ResetDaily(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сброса")
		return
	}
	log.WithField("wallets", n).Info("[CRON] Дневные счётчики сброшены")
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	if s.sendFunc == nil {
		return
	}
	log.Debug("[CRON] Проверка напоминаний")
	sent, err := s.streaks.SendReminders(ctx, func(ctx context.Context, userID int64, text string) error {
		return s.sendFunc(ctx, userID, text)
	})
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний")
		return
	}
	if sent > 0 {
		log.WithField("sent", sent).Info("[CRON] Напоминания отправлены")
	}
}

func (s *Scheduler) completeTimers(ctx context.Context) {
	done, err := s.timers.CompleteDue(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка завершения таймеров")
		return
	}
	for i := range done {
		c := &done[i]
		if s.sendFunc == nil || c.Session.ChatID == 0 {
			continue
		}
		if err := s.sendFunc(ctx, c.Session.ChatID, session.FormatCompletion(c)); err != nil {
			log.WithError(err).WithField("user_id", c.Session.UserID).Warn("[CRON] Не удалось сообщить о завершении таймера")
		}
	}
}
