// Package session: handlers.go обрабатывает команды таймера:
// !таймер [минуты], !пауза, !продолжить, !статус, !стоп.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
)

// Handler обрабатывает команды таймера.
type Handler struct {
	service *Service
	bot     *telego.Bot
	presets []int // Быстрые варианты в минутах (25, 45, 60)
	loc     *time.Location
}

// NewHandler создаёт новый обработчик команд таймера.
func NewHandler(service *Service, bot *telego.Bot, presets []int, loc *time.Location) *Handler {
	return &Handler{service: service, bot: bot, presets: presets, loc: loc}
}

// HandleStart обрабатывает !таймер 45. Без аргумента: подсказка с пресетами.
func (h *Handler) HandleStart(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(ctx, chatID, h.presetsHelp())
		return
	}

	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		h.sendMessage(ctx, chatID, "❌ Укажите длительность в минутах: !таймер 25")
		return
	}

	sess, err := h.service.Start(ctx, userID, chatID, time.Duration(minutes)*time.Minute)
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}

	h.sendMessage(ctx, chatID, fmt.Sprintf(
		"⏱ Таймер на %d %s запущен\nЗакончится в %s. Остановка раньше времени монет не даст.",
		minutes, common.PluralizeMinutes(minutes),
		sess.StartedAt.Add(sess.Target).In(h.loc).Format("15:04"),
	))
}

func (h *Handler) presetsHelp() string {
	parts := make([]string, 0, len(h.presets))
	for _, p := range h.presets {
		parts = append(parts, fmt.Sprintf("!таймер %d", p))
	}
	return "⏱ Выберите длительность:\n" + strings.Join(parts, "\n")
}

// HandlePause обрабатывает !пауза.
func (h *Handler) HandlePause(ctx context.Context, chatID, userID int64) {
	sess, err := h.service.Pause(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("⏸ Пауза. Осталось %s", common.FormatDuration(sess.Remaining(sess.PausedAt))))
}

// HandleResume обрабатывает !продолжить.
func (h *Handler) HandleResume(ctx context.Context, chatID, userID int64) {
	sess, err := h.service.Resume(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("▶️ Продолжаем. Осталось %s", common.FormatDuration(sess.Remaining(sess.ResumedAt))))
}

// HandleStatus обрабатывает !статус.
func (h *Handler) HandleStatus(ctx context.Context, chatID, userID int64) {
	st, err := h.service.Status(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}
	h.sendMessage(ctx, chatID, FormatStatus(st))
}

// FormatStatus: текст экрана таймера.
func FormatStatus(st *Status) string {
	state := "⏱ Идёт"
	if st.Paused {
		state = "⏸ На паузе"
	}
	return fmt.Sprintf("%s\nПрошло: %s\nОсталось: %s\nНаграда: %s",
		state,
		common.FormatDuration(time.Duration(st.ElapsedSeconds)*time.Second),
		common.FormatDuration(time.Duration(st.RemainingSeconds)*time.Second),
		common.FormatBalance(st.EstimatedCoins),
	)
}

// HandleStop обрабатывает !стоп.
func (h *Handler) HandleStop(ctx context.Context, chatID, userID int64) {
	c, err := h.service.Stop(ctx, userID)
	if err != nil {
		h.replyError(ctx, chatID, err)
		return
	}
	h.sendMessage(ctx, chatID, FormatCompletion(c))
}

// FormatCompletion: сообщение о завершённом таймере (и для автоматического завершения).
func FormatCompletion(c *Completion) string {
	minutes := int(c.Session.Target / time.Minute)
	head := fmt.Sprintf("✅ Сессия %d %s завершена!", minutes, common.PluralizeMinutes(minutes))

	switch {
	case c.Award != nil:
		text := fmt.Sprintf("%s\n+%s", head, common.FormatBalance(c.Award.CoinsAwarded))
		if c.Award.BonusApplied {
			text += " (бонус за серию 🔥)"
		}
		return fmt.Sprintf("%s\nБаланс: %s\nСерия: %d %s",
			text, common.FormatBalance(c.Award.Balance),
			c.Award.Streak, common.PluralizeDays(c.Award.Streak))
	case c.LimitReached:
		return head + "\nДневной лимит монет уже набран, продолжай завтра 🌙"
	default:
		return head
	}
}

// replyError переводит ошибки сервиса в понятный ответ.
func (h *Handler) replyError(ctx context.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrNoActiveSession):
		h.sendMessage(ctx, chatID, "⏱ Таймер не запущен. Начните: !таймер 25")
	case errors.Is(err, common.ErrSessionActive):
		h.sendMessage(ctx, chatID, "⏱ Таймер уже запущен. Проверить: !статус")
	case errors.Is(err, common.ErrSessionIncomplete):
		h.sendMessage(ctx, chatID, "⏹ Таймер остановлен досрочно, монеты не начислены")
	case errors.Is(err, common.ErrSessionPaused):
		h.sendMessage(ctx, chatID, "⏸ Таймер уже на паузе. Продолжить: !продолжить")
	case errors.Is(err, common.ErrSessionRunning):
		h.sendMessage(ctx, chatID, "▶️ Таймер и так идёт")
	case errors.Is(err, common.ErrInvalidDuration):
		h.sendMessage(ctx, chatID, fmt.Sprintf("❌ Длительность от %d до %d минут",
			int(h.service.minTarget/time.Minute), int(h.service.maxTarget/time.Minute)))
	case errors.Is(err, common.ErrLockTimeout):
		h.sendMessage(ctx, chatID, "⏳ "+common.ErrLockTimeout.Error())
	default:
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка таймера")
		h.sendMessage(ctx, chatID, "❌ Ошибка таймера")
	}
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
