// Package wallet: handlers.go обрабатывает команды:
// !кошелек (сводка), !потратить (трата), !история (сессии),
// !транзакции (операции), !прогноз (сколько принесёт сессия).
package wallet

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
	"studygarden.ru/backend/internal/features/reward"
)

// Handler обрабатывает команды кошелька.
type Handler struct {
	service *Service
	bot     *telego.Bot
}

// NewHandler создаёт новый обработчик команд кошелька.
func NewHandler(service *Service, bot *telego.Bot) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleWallet обрабатывает !кошелек: баланс, дневной лимит и серию.
//
// Формат ответа:
//
//	💰 Баланс: 42 монеты
//	📅 Сегодня: 30/80 (осталось 50)
//	🔥 Серия: 5 дней (до бонуса 2 дня)
func (h *Handler) HandleWallet(ctx context.Context, chatID, userID int64) {
	sum, err := h.service.Stats(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		sum = h.service.Policy().Summarize(reward.Wallet{}, reward.StreakRecord{}, time.Now().In(h.service.Location()))
		err = nil
	}
	if err != nil {
		log.WithError(err).Error("Ошибка получения кошелька")
		h.sendMessage(ctx, chatID, "❌ Ошибка получения кошелька")
		return
	}
	h.sendMessage(ctx, chatID, FormatSummary(sum))
}

// FormatSummary: текст сводки кошелька (используется и в админке).
func FormatSummary(sum reward.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Баланс: %s\n", common.FormatBalance(sum.Balance))
	fmt.Fprintf(&sb, "📅 Сегодня: %d/%d (осталось %s)\n",
		sum.DailyEarned, sum.DailyLimit, common.FormatBalance(sum.DailyRemaining))
	fmt.Fprintf(&sb, "🏆 Всего заработано: %s\n", common.FormatBalance(sum.TotalEarned))

	if sum.BonusActive {
		fmt.Fprintf(&sb, "🔥 Серия: %d %s, бонус ×%.1f активен",
			sum.CurrentStreak, common.PluralizeDays(sum.CurrentStreak), sum.BonusMultiplier)
	} else {
		fmt.Fprintf(&sb, "🔥 Серия: %d %s (до бонуса %d %s)",
			sum.CurrentStreak, common.PluralizeDays(sum.CurrentStreak),
			sum.DaysToBonus, common.PluralizeDays(sum.DaysToBonus))
	}
	return sb.String()
}

// HandleSpend обрабатывает !потратить 10 [описание].
func (h *Handler) HandleSpend(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(ctx, chatID, "❌ Формат: !потратить сумма [на что]")
		return
	}

	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		h.sendMessage(ctx, chatID, "❌ Сумма должна быть положительным числом")
		return
	}
	description := strings.Join(args[1:], " ")

	w, err := h.service.Spend(ctx, userID, amount, description)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.sendMessage(ctx, chatID, "❌ Сумма должна быть положительной")
		case errors.Is(err, common.ErrInsufficientBalance):
			h.sendMessage(ctx, chatID, "❌ Недостаточно монет на счёте")
		case errors.Is(err, common.ErrLockTimeout):
			h.sendMessage(ctx, chatID, "⏳ "+common.ErrLockTimeout.Error())
		default:
			log.WithError(err).Error("Ошибка траты монет")
			h.sendMessage(ctx, chatID, "❌ Ошибка списания")
		}
		return
	}

	h.sendMessage(ctx, chatID, fmt.Sprintf("✅ Потрачено %s\nОстаток: %s",
		common.FormatBalance(amount), common.FormatBalance(w.Balance)))
}

// HandleHistory обрабатывает !история: последние учебные сессии.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	records, err := h.service.Records(ctx, userID, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения истории сессий")
		h.sendMessage(ctx, chatID, "❌ Ошибка получения истории")
		return
	}
	if len(records) == 0 {
		h.sendMessage(ctx, chatID, "📚 Завершённых сессий пока нет. Запусти таймер: !таймер 25")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Последние сессии (%d):\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&sb, "%d. %s | %s | +%s\n",
			i+1,
			common.FormatDateTime(r.EndTime, h.service.Location()),
			common.FormatDuration(r.Duration),
			common.FormatBalance(r.CoinsEarned),
		)
	}
	h.sendMessage(ctx, chatID, sb.String())
}

// HandleTransactions обрабатывает !транзакции: последние операции.
// Если операций больше 5: остальные прячутся в спойлер.
func (h *Handler) HandleTransactions(ctx context.Context, chatID, userID int64) {
	txs, err := h.service.Transactions(ctx, userID, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения транзакций")
		h.sendMessage(ctx, chatID, "❌ Ошибка получения истории транзакций")
		return
	}
	if len(txs) == 0 {
		h.sendMessage(ctx, chatID, "📋 У вас пока нет транзакций")
		return
	}
	h.sendMessage(ctx, chatID, FormatTransactions(txs, h.service.Location()))
}

// FormatTransactions собирает список операций.
func FormatTransactions(txs []Transaction, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Последние %d транзакций:\n\n", len(txs))

	for i, t := range txs {
		if i == 5 {
			sb.WriteString("\n||")
		}
		fmt.Fprintf(&sb, "%d. %s | %s | %s\n",
			i+1,
			common.FormatDateTime(t.CreatedAt, loc),
			common.FormatCoinsAmount(t.Amount),
			t.Description,
		)
	}
	if len(txs) > 5 {
		sb.WriteString("||")
	}
	return sb.String()
}

// HandleEstimate обрабатывает !прогноз 45: сколько монет принесёт сессия в 45 минут сейчас.
func (h *Handler) HandleEstimate(ctx context.Context, chatID, userID int64, args []string) {
	minutes := 25
	if len(args) > 0 {
		m, err := strconv.Atoi(args[0])
		if err != nil || m <= 0 {
			h.sendMessage(ctx, chatID, "❌ Формат: !прогноз минуты")
			return
		}
		minutes = m
	}

	coins, err := h.service.Estimate(ctx, userID, time.Duration(minutes)*time.Minute)
	if err != nil {
		log.WithError(err).Error("Ошибка расчёта прогноза")
		h.sendMessage(ctx, chatID, "❌ Ошибка расчёта")
		return
	}

	if coins == 0 {
		h.sendMessage(ctx, chatID, fmt.Sprintf("🌱 %d %s учёбы сейчас не принесут монет (лимит на сегодня или слишком коротко)",
			minutes, common.PluralizeMinutes(minutes)))
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("🌱 %d %s учёбы принесут %s",
		minutes, common.PluralizeMinutes(minutes), common.FormatBalance(coins)))
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
