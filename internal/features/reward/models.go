// Package reward: чистая политика начисления монет за учёбу.
// models.go описывает снимки кошелька, стрика и запись учебной сессии.
//
// Пакет не ходит в БД и не читает часы: всё состояние передаётся на вход
// и возвращается на выходе, сохранение: забота вызывающего кода.
package reward

import (
	"time"

	"github.com/google/uuid"
)

// Wallet: кошелёк пользователя (один на пользователя).
type Wallet struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Balance       int64     `json:"balance"`       // Монеты, которые можно потратить
	TotalEarned   int64     `json:"totalEarned"`   // Сколько заработано за всё время (только растёт)
	DailyEarned   int64     `json:"dailyEarned"`   // Заработано в день LastResetDate
	LastStudyDate time.Time `json:"lastStudyDate"` // Окончание последней завершённой сессии
	LastResetDate time.Time `json:"lastResetDate"` // День, для которого действителен DailyEarned
}

// StreakRecord: серия дней подряд с хотя бы одной завершённой сессией.
type StreakRecord struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	CurrentStreak   int       `json:"currentStreak"`
	LongestStreak   int       `json:"longestStreak"` // Всегда >= CurrentStreak после обновления
	LastStudyDate   time.Time `json:"lastStudyDate"` // Нулевое значение: ещё не учился
	BonusMultiplier float64   `json:"bonusMultiplier"`
}

// StudyRecord: неизменяемая запись о завершённой учебной сессии.
// ID совпадает с ID таймера и служит ключом идемпотентности.
type StudyRecord struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int64         `json:"userId"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`
	CoinsEarned int64         `json:"coinsEarned"`
	CreatedAt   time.Time     `json:"timestamp"`
}

// Result: результат начисления за одну сессию.
type Result struct {
	BaseCoins    int64 // floor(длительность / SecondsPerCoin)
	CappedCoins  int64 // после дневного лимита
	CoinsAwarded int64 // итог с учётом бонуса за стрик
	BonusApplied bool
	Wallet       Wallet
	Streak       StreakRecord
	Record       StudyRecord
}

// Summary: сводка для экрана кошелька.
type Summary struct {
	Balance         int64   `json:"balance"`
	TotalEarned     int64   `json:"totalEarned"`
	DailyEarned     int64   `json:"dailyEarned"`
	DailyRemaining  int64   `json:"dailyRemaining"`
	DailyLimit      int64   `json:"dailyLimit"`
	CurrentStreak   int     `json:"currentStreak"`
	LongestStreak   int     `json:"longestStreak"`
	BonusActive     bool    `json:"bonusActive"`
	BonusMultiplier float64 `json:"bonusMultiplier"`
	DaysToBonus     int     `json:"daysToBonus"`
}
