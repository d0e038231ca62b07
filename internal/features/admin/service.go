// Package admin: service.go содержит логику аутентификации, управления сессиями
// и state-машину для пошаговых админ-действий.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/members"
	"studygarden.ru/backend/internal/features/reward"
)

// MemberResolver ищет участника по id или @username.
type MemberResolver interface {
	Resolve(ctx context.Context, ref string) (*members.Member, error)
}

// WalletAdmin: операции кошелька, доступные из админки.
type WalletAdmin interface {
	Grant(ctx context.Context, adminID, userID, amount int64) (reward.Wallet, error)
	Stats(ctx context.Context, userID int64) (reward.Summary, error)
}

// Service управляет админ-панелью.
type Service struct {
	repo         Store
	members      MemberResolver
	wallets      WalletAdmin
	adminIDs     map[int64]struct{}
	passwordHash string

	states   map[int64]*DialogState // Состояния диалогов (in-memory)
	statesMu sync.RWMutex

	now func() time.Time
}

// NewService создаёт сервис админ-панели.
func NewService(repo Store, memberResolver MemberResolver, wallets WalletAdmin, adminIDs []int64, passwordHash string) *Service {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Service{
		repo:         repo,
		members:      memberResolver,
		wallets:      wallets,
		adminIDs:     ids,
		passwordHash: passwordHash,
		states:       make(map[int64]*DialogState),
		now:          time.Now,
	}
}

// IsAdmin: входит ли пользователь в ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.adminIDs[userID]
	return ok
}

// Login проверяет пароль и открывает сессию на 24 часа.
// 3 неудачные попытки за час блокируют вход до конца окна.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	now := s.now()
	attempts, err := s.repo.CountFailedSince(ctx, userID, now.Add(-attemptsWindow))
	if err != nil {
		return fmt.Errorf("ошибка проверки попыток входа: %w", err)
	}
	if attempts >= maxAttempts {
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.passwordHash)

	if err := s.repo.LogAttempt(ctx, userID, match, now); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}

	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль админки")
		return common.ErrWrongPassword
	}

	session := &AdminSession{
		UserID:          userID,
		SessionToken:    generateSecureToken(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return err
	}

	log.WithField("user_id", userID).Info("Вход в админ-панель")
	return nil
}

// Logout закрывает сессию администратора.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.repo.DeactivateSession(ctx, userID)
}

// HasActiveSession проверяет, есть ли у пользователя активная сессия.
func (s *Service) HasActiveSession(ctx context.Context, userID int64) bool {
	session, err := s.repo.GetActiveSession(ctx, userID, s.now())
	return err == nil && session != nil
}

// Touch обновляет время последней активности.
func (s *Service) Touch(ctx context.Context, userID int64) {
	if err := s.repo.UpdateActivity(ctx, userID, s.now()); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось обновить активность сессии")
	}
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *DialogState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return nil
	}
	if s.now().After(state.ExpiresAt) {
		return nil
	}
	st := *state
	return &st
}

// AwaitingPassword: ждём ли от пользователя пароль.
func (s *Service) AwaitingPassword(userID int64) bool {
	st := s.GetState(userID)
	return st != nil && st.State == StateAwaitingPassword
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, state DialogState) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	state.ExpiresAt = s.now().Add(stateTTL)
	s.states[userID] = &state
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// FindMember ищет участника по id, @username или username.
func (s *Service) FindMember(ctx context.Context, ref string) (*members.Member, error) {
	return s.members.Resolve(ctx, ref)
}

// GrantCoins начисляет монеты участнику вне дневного лимита.
func (s *Service) GrantCoins(ctx context.Context, adminID, userID, amount int64) (reward.Wallet, error) {
	if !s.IsAdmin(adminID) {
		return reward.Wallet{}, common.ErrNotAdmin
	}
	if amount <= 0 {
		return reward.Wallet{}, common.ErrInvalidAmount
	}
	return s.wallets.Grant(ctx, adminID, userID, amount)
}

// WalletOf возвращает сводку кошелька участника.
func (s *Service) WalletOf(ctx context.Context, userID int64) (reward.Summary, error) {
	return s.wallets.Stats(ctx, userID)
}
