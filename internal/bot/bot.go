// Package bot содержит Telegram-транспорт: long polling, фильтры, маршрутизацию команд.
// bot.go принимает готовые сервисы и обработчики и запускает polling.
package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/bot/filters"
	"studygarden.ru/backend/internal/bot/middleware"
	"studygarden.ru/backend/internal/config"
	"studygarden.ru/backend/internal/features/admin"
	"studygarden.ru/backend/internal/features/members"
	"studygarden.ru/backend/internal/features/session"
	"studygarden.ru/backend/internal/features/streak"
	"studygarden.ru/backend/internal/features/wallet"
	"studygarden.ru/backend/internal/ratelimit"
)

const helpText = `🌱 Учебный сад: учись по таймеру и собирай монеты

⏱ Таймер
!таймер 25 — запустить (25/45/60 минут)
!пауза, !продолжить, !статус, !стоп

💰 Кошелёк
!кошелек — баланс и дневной лимит
!прогноз 45 — сколько принесёт сессия
!потратить 10 [на что] — потратить монеты
!история — последние сессии
!транзакции — последние операции

🔥 !огонек — серия дней подряд`

// NewAPI создаёт клиент Telegram Bot API с логированием через logrus.
func NewAPI(token string) (*telego.Bot, error) {
	api, err := telego.NewBot(token, telego.WithLogger(log.WithField("component", "telego")))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return api, nil
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *telego.Bot
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *ratelimit.Limiter[int64]

	memberHandler  *members.Handler
	walletHandler  *wallet.Handler
	sessionHandler *session.Handler
	streakHandler  *streak.Handler
	adminHandler   *admin.Handler

	memberService *members.Service
	adminService  *admin.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *telego.Bot,
	cfg *config.Config,
	memberService *members.Service,
	memberHandler *members.Handler,
	walletHandler *wallet.Handler,
	sessionHandler *session.Handler,
	streakHandler *streak.Handler,
	adminService *admin.Service,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:            api,
		cfg:            cfg,
		chatFilter:     chatFilter,
		rateLimiter:    ratelimit.New[int64](cfg.RateLimitRequests, cfg.RateLimitWindow),
		memberHandler:  memberHandler,
		walletHandler:  walletHandler,
		sessionHandler: sessionHandler,
		streakHandler:  streakHandler,
		adminHandler:   adminHandler,
		memberService:  memberService,
		adminService:   adminService,
		parser:         NewCommandParser(),
		inflight:       make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
// Перед возвратом дожидается всех обработчиков, которые уже запущены.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for update := range updates {
		// лимит параллелизма
		b.inflight <- struct{}{}
		go func(upd telego.Update) {
			defer func() { <-b.inflight }()
			b.handleUpdate(ctx, upd)
		}(update)
	}

	// Канал закрывается после отмены ctx; ждём, пока освободятся все слоты.
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
	log.Info("Бот остановлен")
	return nil
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(log.Fields{"update_id": update.UpdateID})

	message := update.Message
	if message == nil {
		return
	}

	// Вступление в учебный чат
	if len(message.NewChatMembers) > 0 {
		if b.chatFilter.IsStudyChat(message.Chat.ID) {
			b.memberHandler.HandleNewChatMembers(ctx, message.NewChatMembers)
		}
		return
	}

	if message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID
	private := message.Chat.Type == telego.ChatTypePrivate

	if err := b.memberService.EnsureMember(ctx, members.ProfileOf(message.From)); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureMember failed")
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)

	// В личке сначала админ-диалог: пароль или шаг мастера
	if private && (!isCommand || b.adminService.AwaitingPassword(userID)) {
		if b.adminHandler.HandleAdminMessage(ctx, chatID, userID, message.MessageID, message.Text) {
			return
		}
	}

	if !isCommand {
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")
	b.routeCommand(ctx, chatID, userID, private, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, private bool, cmd string, args []string) {
	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(ctx, chatID, helpText)

	case "админ", "login":
		if private {
			b.adminHandler.HandleLogin(ctx, chatID, userID)
		}

	case "кошелек", "монеты", "баланс":
		b.walletHandler.HandleWallet(ctx, chatID, userID)

	case "потратить":
		b.walletHandler.HandleSpend(ctx, chatID, userID, args)

	case "история":
		b.walletHandler.HandleHistory(ctx, chatID, userID)

	case "транзакции":
		b.walletHandler.HandleTransactions(ctx, chatID, userID)

	case "прогноз":
		b.walletHandler.HandleEstimate(ctx, chatID, userID, args)

	case "таймер":
		b.sessionHandler.HandleStart(ctx, chatID, userID, args)

	case "пауза":
		b.sessionHandler.HandlePause(ctx, chatID, userID)

	case "продолжить":
		b.sessionHandler.HandleResume(ctx, chatID, userID)

	case "статус":
		b.sessionHandler.HandleStatus(ctx, chatID, userID)

	case "стоп":
		b.sessionHandler.HandleStop(ctx, chatID, userID)

	case "огонек", "серия":
		b.streakHandler.HandleOgonek(ctx, chatID, userID)
	}
}

// sendMessage: утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToUser отправляет сообщение пользователю (напоминания, завершение таймера).
func (b *Bot) SendMessageToUser(ctx context.Context, userID int64, text string) error {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(userID), text)); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
		return err
	}
	log.WithField("user_id", userID).Debug("message sent")
	return nil
}
