// Package wallet хранит кошельки и серии пользователей и проводит через них
// начисления за учёбу, траты и ручные выдачи администратора.
// models.go описывает записи истории операций.
package wallet

import (
	"time"

	"github.com/google/uuid"

	"studygarden.ru/backend/internal/features/reward"
)

// Transaction: одна операция с монетами.
// Amount со знаком: положительный для начисления, отрицательный для списания.
type Transaction struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"userId" db:"user_id"`
	Amount      int64      `json:"amount" db:"amount"`
	Type        string     `json:"type" db:"transaction_type"`
	Description string     `json:"description" db:"description"`
	SessionID   *uuid.UUID `json:"sessionId,omitempty" db:"session_id"` // Для study_reward
	ActorID     *int64     `json:"actorId,omitempty" db:"actor_id"`     // Кто выдал (для admin_give)
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// Типы транзакций
const (
	TxTypeStudyReward = "study_reward" // Монеты за учебную сессию
	TxTypeSpend       = "spend"        // Трата в приложении
	TxTypeAdminGive   = "admin_give"   // Выдача админом
)

// Mutation: состояние, которое Store.Mutate читает под блокировкой строк
// и записывает обратно после успешного fn.
type Mutation struct {
	Wallet reward.Wallet
	Streak reward.StreakRecord

	// Record и Transaction добавляются, только если fn их заполнил.
	Record      *reward.StudyRecord
	Transaction *Transaction
}

// Award: итог начисления, который видят бот и API.
type Award struct {
	SessionID    uuid.UUID     `json:"sessionId"`
	Duration     time.Duration `json:"duration"`
	BaseCoins    int64         `json:"baseCoins"`
	CappedCoins  int64         `json:"cappedCoins"`
	CoinsAwarded int64         `json:"coinsAwarded"`
	BonusApplied bool          `json:"bonusApplied"`
	Balance      int64         `json:"balance"`
	DailyEarned  int64         `json:"dailyEarned"`
	Streak       int           `json:"currentStreak"`
}
