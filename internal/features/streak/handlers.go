// Package streak: handlers.go обрабатывает команду !огонек.
// Показывает текущую серию, рекорд и сколько осталось до бонуса.
package streak

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
)

// Handler обрабатывает команды стрик-системы.
type Handler struct {
	service *Service
	bot     *telego.Bot
}

// NewHandler создаёт новый обработчик стрик-команд.
func NewHandler(service *Service, bot *telego.Bot) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleOgonek обрабатывает команду !огонек: показывает прогресс серии.
//
// Формат ответа:
//
//	🔥 Твой огонек
//	Текущая серия: 8 дней
//	Лучшая серия: 12 дней
//	✅ Сегодня уже засчитан
//	Бонус ×1.1 активен
func (h *Handler) HandleOgonek(ctx context.Context, chatID int64, userID int64) {
	v, err := h.service.GetStreak(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения стрика")
		h.sendMessage(ctx, chatID, "❌ Ошибка получения данных стрика")
		return
	}
	h.sendMessage(ctx, chatID, FormatView(v))
}

// FormatView: текст экрана серии.
func FormatView(v View) string {
	var sb strings.Builder
	sb.WriteString("🔥 Твой огонек\n\n")
	fmt.Fprintf(&sb, "Текущая серия: %d %s\n", v.Record.CurrentStreak, common.PluralizeDays(v.Record.CurrentStreak))
	fmt.Fprintf(&sb, "Лучшая серия: %d %s\n\n", v.Record.LongestStreak, common.PluralizeDays(v.Record.LongestStreak))

	switch {
	case v.StudiedToday:
		sb.WriteString("✅ Сегодня уже засчитан\n")
	case v.Alive:
		sb.WriteString("⏳ Позанимайся сегодня, чтобы продлить серию\n")
	case v.Record.CurrentStreak > 0:
		sb.WriteString("💤 Серия прервана, следующая сессия начнёт новую\n")
	default:
		sb.WriteString("🌱 Заверши первую сессию, чтобы зажечь огонек\n")
	}

	if v.BonusActive {
		fmt.Fprintf(&sb, "Бонус ×%.1f активен", v.BonusMultiplier)
	} else {
		fmt.Fprintf(&sb, "До бонуса: %d %s", v.DaysToBonus, common.PluralizeDays(v.DaysToBonus))
	}
	return sb.String()
}

// sendMessage: вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
