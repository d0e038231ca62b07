// Package admin: handlers.go обрабатывает взаимодействие с админ-панелью.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: !админ → пароль → клавиатура → выбор действия → пошаговый диалог.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/wallet"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     *telego.Bot
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, bot *telego.Bot) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleLogin обрабатывает !админ: открывает панель или просит пароль.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64) {
	if !h.service.IsAdmin(userID) {
		h.sendMessage(ctx, chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}

	if h.service.HasActiveSession(ctx, userID) {
		h.service.Touch(ctx, userID)
		h.showKeyboard(ctx, chatID, "✅ Админ-панель открыта")
		return
	}

	h.service.SetState(userID, DialogState{State: StateAwaitingPassword})
	h.sendMessage(ctx, chatID, "🔐 Введите пароль для доступа к админ-панели:")
}

// HandleAdminMessage обрабатывает обычный текст администратора в личке.
// Возвращает true, если сообщение относилось к админ-диалогу.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, messageID int, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	state := h.service.GetState(userID)
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, messageID, text)
		return true
	}

	if !h.service.HasActiveSession(ctx, userID) {
		if state != nil {
			h.service.ClearState(userID)
			h.sendMessage(ctx, chatID, "🔒 "+common.ErrSessionExpired.Error()+": !админ")
			return true
		}
		return false
	}
	h.service.Touch(ctx, userID)

	text = strings.TrimSpace(text)

	switch text {
	case ButtonCancel:
		h.service.ClearState(userID)
		h.showKeyboard(ctx, chatID, "Действие отменено")
		return true
	case ButtonLogout:
		h.handleLogout(ctx, chatID, userID)
		return true
	case ButtonGrant:
		h.service.SetState(userID, DialogState{State: StateGrantUser})
		h.sendMessage(ctx, chatID, "Кому начислить монеты? Отправьте id или @username")
		return true
	case ButtonWallet:
		h.service.SetState(userID, DialogState{State: StateViewWallet})
		h.sendMessage(ctx, chatID, "Чей кошелёк показать? Отправьте id или @username")
		return true
	}

	if state == nil {
		return false
	}

	switch state.State {
	case StateGrantUser:
		h.handleGrantUser(ctx, chatID, userID, text)
	case StateGrantAmount:
		h.handleGrantAmount(ctx, chatID, userID, state, text)
	case StateViewWallet:
		h.handleViewWallet(ctx, chatID, userID, text)
	default:
		return false
	}
	return true
}

// handlePasswordInput обрабатывает ввод пароля. Сообщение с паролем удаляется из чата.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, messageID int, password string) {
	if messageID != 0 {
		if err := h.bot.DeleteMessage(ctx, tu.Delete(tu.ID(chatID), messageID)); err != nil {
			log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
		}
	}

	h.service.ClearState(userID)
	if err := h.service.Login(ctx, userID, strings.TrimSpace(password)); err != nil {
		switch {
		case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrTooManyAttempts), errors.Is(err, common.ErrNotAdmin):
			h.sendMessage(ctx, chatID, "❌ "+err.Error())
		default:
			log.WithError(err).WithField("user_id", userID).Error("Ошибка входа в админку")
			h.sendMessage(ctx, chatID, "❌ Ошибка входа, попробуйте позже")
		}
		return
	}

	h.showKeyboard(ctx, chatID, "✅ Аутентификация успешна!")
}

func (h *Handler) handleLogout(ctx context.Context, chatID, userID int64) {
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода из админки")
	}
	msg := tu.Message(tu.ID(chatID), "👋 Сессия закрыта").WithReplyMarkup(tu.ReplyKeyboardRemove())
	if _, err := h.bot.SendMessage(ctx, msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}

// --- Начислить монеты (2 шага) ---

// handleGrantUser (шаг 1): выбран получатель.
func (h *Handler) handleGrantUser(ctx context.Context, chatID, userID int64, ref string) {
	member, err := h.service.FindMember(ctx, ref)
	if err != nil {
		h.replyLookupError(ctx, chatID, err)
		return
	}

	h.service.SetState(userID, DialogState{
		State:      StateGrantAmount,
		TargetID:   member.UserID,
		TargetName: member.DisplayName(),
	})
	h.sendMessage(ctx, chatID, fmt.Sprintf("Сколько монет начислить %s?", member.DisplayName()))
}

// handleGrantAmount (шаг 2): ввод суммы.
func (h *Handler) handleGrantAmount(ctx context.Context, chatID, userID int64, state *DialogState, text string) {
	amount, err := strconv.ParseInt(text, 10, 64)
	if err != nil || amount <= 0 {
		h.sendMessage(ctx, chatID, "❌ Сумма должна быть положительным числом. Попробуйте ещё раз.")
		return
	}

	w, err := h.service.GrantCoins(ctx, userID, state.TargetID, amount)
	h.service.ClearState(userID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"admin_id": userID,
			"user_id":  state.TargetID,
		}).Error("Ошибка начисления монет")
		h.sendMessage(ctx, chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}

	h.sendMessage(ctx, chatID, fmt.Sprintf("✅ %s: +%s\nБаланс: %s",
		state.TargetName, common.FormatBalance(amount), common.FormatBalance(w.Balance)))
}

// --- Кошелёк участника ---

func (h *Handler) handleViewWallet(ctx context.Context, chatID, userID int64, ref string) {
	member, err := h.service.FindMember(ctx, ref)
	if err != nil {
		h.replyLookupError(ctx, chatID, err)
		return
	}
	h.service.ClearState(userID)

	sum, err := h.service.WalletOf(ctx, member.UserID)
	if errors.Is(err, common.ErrUserNotFound) {
		h.sendMessage(ctx, chatID, fmt.Sprintf("У %s ещё нет кошелька", member.DisplayName()))
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", member.UserID).Error("Ошибка получения кошелька")
		h.sendMessage(ctx, chatID, "❌ Ошибка получения кошелька")
		return
	}
	h.sendMessage(ctx, chatID, fmt.Sprintf("👤 %s\n%s", member.DisplayName(), wallet.FormatSummary(sum)))
}

func (h *Handler) replyLookupError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, common.ErrUserNotFound) {
		h.sendMessage(ctx, chatID, "❌ Участник не найден. Попробуйте ещё раз или нажмите «"+ButtonCancel+"»")
		return
	}
	log.WithError(err).Error("Ошибка поиска участника")
	h.sendMessage(ctx, chatID, "❌ Ошибка поиска участника")
}

// showKeyboard отображает клавиатуру админ-панели.
func (h *Handler) showKeyboard(ctx context.Context, chatID int64, text string) {
	keyboard := tu.Keyboard(
		tu.KeyboardRow(
			tu.KeyboardButton(ButtonGrant),
			tu.KeyboardButton(ButtonWallet),
		),
		tu.KeyboardRow(
			tu.KeyboardButton(ButtonCancel),
			tu.KeyboardButton(ButtonLogout),
		),
	).WithResizeKeyboard()

	msg := tu.Message(tu.ID(chatID), text).WithReplyMarkup(keyboard)
	if _, err := h.bot.SendMessage(ctx, msg); err != nil {
		log.WithError(err).Error("Ошибка отправки клавиатуры")
	}
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
