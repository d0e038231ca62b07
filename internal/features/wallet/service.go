// Package wallet: service.go содержит бизнес-логику кошелька:
// начисление за сессию, траты, выдачу админом и сводки.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/reward"
	"studygarden.ru/backend/internal/locker"
)

// lockTimeout: сколько ждём освобождения кошелька другим запросом того же пользователя.
const lockTimeout = 5 * time.Second

// Service управляет кошельками пользователей.
type Service struct {
	store  Store
	policy reward.Policy
	locker locker.Locker
	loc    *time.Location   // Часовой пояс календарных дней
	now    func() time.Time // Подменяется в тестах
}

// NewService создаёт новый сервис кошельков.
func NewService(store Store, policy reward.Policy, lk locker.Locker, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		policy: policy,
		locker: lk,
		loc:    loc,
		now:    time.Now,
	}
}

// Policy возвращает правила начисления, с которыми работает сервис.
func (s *Service) Policy() reward.Policy {
	return s.policy
}

// Location: часовой пояс, в котором считаются дни.
func (s *Service) Location() *time.Location {
	return s.loc
}

// EnsureWallet создаёт кошелёк пользователю, если его ещё нет.
func (s *Service) EnsureWallet(ctx context.Context, userID int64) error {
	return s.store.Ensure(ctx, userID)
}

// withLock выполняет fn под блокировкой кошелька пользователя.
func (s *Service) withLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, locker.Key("wallet", userID))
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}

// AwardSession начисляет монеты за учебный интервал [start, end].
// sessionID служит ключом идемпотентности: второе начисление за ту же сессию
// вернёт ErrSessionAlreadyAwarded и ничего не изменит.
//
// Ошибки ErrInvalidInterval и ErrDailyLimitReached не меняют состояние.
func (s *Service) AwardSession(ctx context.Context, userID int64, sessionID uuid.UUID, start, end time.Time) (*Award, error) {
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	start, end = start.In(s.loc), end.In(s.loc)

	var award *Award
	err := s.withLock(ctx, userID, func(ctx context.Context) error {
		exists, err := s.store.RecordExists(ctx, sessionID)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrSessionAlreadyAwarded
		}

		return s.store.Mutate(ctx, userID, func(m *Mutation) error {
			m.Wallet.UserID = userID
			m.Streak.UserID = userID

			res, err := s.policy.AwardForSession(m.Wallet, m.Streak, start, end)
			if err != nil {
				return err
			}

			rec := res.Record
			rec.ID = sessionID
			rec.CreatedAt = s.now()

			m.Wallet = res.Wallet
			m.Streak = res.Streak
			m.Record = &rec
			m.Transaction = &Transaction{
				UserID:      userID,
				Amount:      res.CoinsAwarded,
				Type:        TxTypeStudyReward,
				Description: awardDescription(rec.Duration, res.BonusApplied),
				SessionID:   &sessionID,
			}

			award = &Award{
				SessionID:    sessionID,
				Duration:     rec.Duration,
				BaseCoins:    res.BaseCoins,
				CappedCoins:  res.CappedCoins,
				CoinsAwarded: res.CoinsAwarded,
				BonusApplied: res.BonusApplied,
				Balance:      res.Wallet.Balance,
				DailyEarned:  res.Wallet.DailyEarned,
				Streak:       res.Streak.CurrentStreak,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrDailyLimitReached) {
			log.WithFields(log.Fields{
				"user_id":    userID,
				"session_id": sessionID,
			}).Info("Дневной лимит монет исчерпан, начисления нет")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"coins":      award.CoinsAwarded,
		"bonus":      award.BonusApplied,
		"balance":    award.Balance,
		"streak":     award.Streak,
	}).Info("Монеты за сессию начислены")

	return award, nil
}

func awardDescription(d time.Duration, bonus bool) string {
	minutes := int(d / time.Minute)
	text := fmt.Sprintf("Учёба %d %s", minutes, common.PluralizeMinutes(minutes))
	if bonus {
		text += " (бонус за серию)"
	}
	return text
}

// Spend списывает amount монет. Неположительная сумма или нехватка средств
// дают ошибку, совместимую с ErrInsufficientBalance.
func (s *Service) Spend(ctx context.Context, userID, amount int64, description string) (reward.Wallet, error) {
	if amount <= 0 {
		return reward.Wallet{}, common.ErrInvalidAmount
	}
	if description == "" {
		description = "Трата монет"
	}

	var out reward.Wallet
	err := s.withLock(ctx, userID, func(ctx context.Context) error {
		return s.store.Mutate(ctx, userID, func(m *Mutation) error {
			w, err := s.policy.Spend(m.Wallet, amount)
			if err != nil {
				return err
			}
			m.Wallet = w
			m.Transaction = &Transaction{
				UserID:      userID,
				Amount:      -amount,
				Type:        TxTypeSpend,
				Description: description,
			}
			out = w
			return nil
		})
	})
	if err != nil {
		return reward.Wallet{}, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"balance": out.Balance,
	}).Info("Монеты потрачены")
	return out, nil
}

// Grant: выдача монет администратором. Дневной лимит не применяется.
func (s *Service) Grant(ctx context.Context, adminID, userID, amount int64) (reward.Wallet, error) {
	if amount <= 0 {
		return reward.Wallet{}, common.ErrInvalidAmount
	}

	var out reward.Wallet
	err := s.withLock(ctx, userID, func(ctx context.Context) error {
		return s.store.Mutate(ctx, userID, func(m *Mutation) error {
			w, err := s.policy.Credit(m.Wallet, amount)
			if err != nil {
				return err
			}
			m.Wallet = w
			m.Transaction = &Transaction{
				UserID:      userID,
				Amount:      amount,
				Type:        TxTypeAdminGive,
				Description: "Выдача администратором",
				ActorID:     &adminID,
			}
			out = w
			return nil
		})
	})
	if err != nil {
		return reward.Wallet{}, err
	}

	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"amount":   amount,
	}).Info("Админ выдал монеты")
	return out, nil
}

// Stats возвращает сводку кошелька на текущий момент.
func (s *Service) Stats(ctx context.Context, userID int64) (reward.Summary, error) {
	w, st, err := s.store.Load(ctx, userID)
	if err != nil {
		return reward.Summary{}, err
	}
	return s.policy.Summarize(w, st, s.now().In(s.loc)), nil
}

// Estimate: сколько монет принесёт сессия длительностью d, если закончить её сейчас.
func (s *Service) Estimate(ctx context.Context, userID int64, d time.Duration) (int64, error) {
	w, st, err := s.store.Load(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		// Нового пользователя считаем с пустым кошельком.
		w, st, err = reward.Wallet{UserID: userID}, reward.StreakRecord{UserID: userID}, nil
	}
	if err != nil {
		return 0, err
	}
	return s.policy.EstimateCoins(d, w, st, s.now().In(s.loc)), nil
}

// Records: последние учебные сессии пользователя.
func (s *Service) Records(ctx context.Context, userID int64, limit int) ([]reward.StudyRecord, error) {
	return s.store.ListRecords(ctx, userID, normalizeLimit(limit))
}

// Transactions: последние операции с монетами.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, userID, normalizeLimit(limit))
}

// ResetDaily обнуляет дневные счётчики всех кошельков (вызывается в полночь).
func (s *Service) ResetDaily(ctx context.Context) (int64, error) {
	dayStart := common.StartOfDay(s.now().In(s.loc))
	n, err := s.store.ResetDaily(ctx, dayStart)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"wallets": n,
		"day":     dayStart.Format("2006-01-02"),
	}).Info("Дневные счётчики сброшены")
	return n, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 100:
		return 100
	default:
		return limit
	}
}
