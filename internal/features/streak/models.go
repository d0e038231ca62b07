// Package streak показывает серию дней подряд с учёбой (!огонек) и рассылает напоминания.
// Сама серия меняется только при начислении за сессию (пакет reward),
// здесь она читается и показывается.
// models.go описывает представления серии.
package streak

import (
	"time"

	"studygarden.ru/backend/internal/features/reward"
)

// View: состояние серии на момент просмотра.
type View struct {
	Record          reward.StreakRecord `json:"record"`
	Alive           bool                `json:"alive"`        // Учился сегодня или вчера: серию ещё можно продолжить
	StudiedToday    bool                `json:"studiedToday"` // Сегодняшний день уже засчитан
	BonusActive     bool                `json:"bonusActive"`
	BonusMultiplier float64             `json:"bonusMultiplier"`
	DaysToBonus     int                 `json:"daysToBonus"`
}

// Candidate: пользователь, которому может понадобиться напоминание.
type Candidate struct {
	UserID         int64      `db:"user_id"`
	CurrentStreak  int        `db:"current_streak"`
	LastStudyDate  time.Time  `db:"last_study_date"`
	ReminderSentAt *time.Time `db:"reminder_sent_at"`
}
