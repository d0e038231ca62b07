// Package members: handlers.go обрабатывает вступление пользователей в учебный чат.
package members

import (
	"context"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// OnJoin: что ещё создать новому участнику (кошелёк и серию).
type OnJoin func(ctx context.Context, userID int64) error

// Handler обрабатывает события участников.
type Handler struct {
	service *Service
	onJoin  OnJoin
}

// NewHandler создаёт новый обработчик событий участников.
func NewHandler(service *Service, onJoin OnJoin) *Handler {
	return &Handler{service: service, onJoin: onJoin}
}

// HandleNewChatMembers регистрирует каждого вступившего (кроме ботов).
func (h *Handler) HandleNewChatMembers(ctx context.Context, newMembers []telego.User) {
	for _, user := range newMembers {
		if user.IsBot {
			continue
		}
		if err := h.service.EnsureMember(ctx, ProfileOf(&user)); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Ошибка регистрации нового участника")
			continue
		}
		if h.onJoin != nil {
			if err := h.onJoin(ctx, user.ID); err != nil {
				log.WithError(err).WithField("user_id", user.ID).Warn("Не удалось подготовить кошелёк участника")
			}
		}
		log.WithField("user", user.Username).Info("Новый участник обработан")
	}
}

// ProfileOf переводит пользователя Telegram в Profile.
func ProfileOf(u *telego.User) Profile {
	return Profile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
