// Package streak: repository.go читает таблицу streaks.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/reward"
)

// Reader: то, что сервису серий нужно от хранилища.
type Reader interface {
	Get(ctx context.Context, userID int64) (reward.StreakRecord, error)
	// ReminderCandidates: серии не короче minStreak, которым сегодня ещё не напоминали.
	ReminderCandidates(ctx context.Context, minStreak int, dayStart time.Time) ([]Candidate, error)
	MarkReminderSent(ctx context.Context, userID int64, at time.Time) error
}

// Repository предоставляет методы для работы с таблицей streaks.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий стриков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает серию пользователя.
func (r *Repository) Get(ctx context.Context, userID int64) (reward.StreakRecord, error) {
	var (
		s         reward.StreakRecord
		lastStudy *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, current_streak, longest_streak, last_study_date, bonus_multiplier
		FROM streaks
		WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.UserID, &s.CurrentStreak, &s.LongestStreak, &lastStudy, &s.BonusMultiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return reward.StreakRecord{}, common.ErrUserNotFound
	}
	if err != nil {
		return reward.StreakRecord{}, fmt.Errorf("стрик не найден (user_id=%d): %w", userID, err)
	}
	if lastStudy != nil {
		s.LastStudyDate = *lastStudy
	}
	return s, nil
}

// ReminderCandidates возвращает серии >= minStreak без напоминания с начала дня.
// Используется для напоминаний (серия >= 7 дней).
func (r *Repository) ReminderCandidates(ctx context.Context, minStreak int, dayStart time.Time) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, current_streak, last_study_date, reminder_sent_at
		FROM streaks
		WHERE current_streak >= $1
		  AND last_study_date IS NOT NULL
		  AND last_study_date < $2
		  AND (reminder_sent_at IS NULL OR reminder_sent_at < $2)
	`, minStreak, dayStart)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стриков для напоминаний: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.UserID, &c.CurrentStreak, &c.LastStudyDate, &c.ReminderSentAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkReminderSent помечает, что напоминание уже отправлено сегодня.
func (r *Repository) MarkReminderSent(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE streaks SET reminder_sent_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("ошибка отметки напоминания: %w", err)
	}
	return nil
}
