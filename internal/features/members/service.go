// Package members: service.go содержит бизнес-логику управления участниками.
package members

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
)

// Service управляет участниками.
type Service struct {
	repo Store
}

// NewService создаёт новый сервис участников.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// EnsureMember гарантирует, что пользователь есть в базе, и обновляет имя/username.
// Вызывается на каждое сообщение, поэтому пишет в БД только при изменениях.
func (s *Service) EnsureMember(ctx context.Context, p Profile) error {
	if p.UserID == 0 {
		return fmt.Errorf("пустой user_id")
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":  p.UserID,
		"username": p.Username,
	}).Debug("Участник актуализирован")
	return nil
}

// GetByUserID возвращает участника по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Resolve находит участника по «@username», «username» или числовому id.
// Используется в админке.
func (s *Service) Resolve(ctx context.Context, ref string) (*Member, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, common.ErrUserNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.repo.GetByUserID(ctx, id)
	}
	return s.repo.GetByUsername(ctx, strings.TrimPrefix(ref, "@"))
}
