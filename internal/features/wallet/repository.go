// Package wallet: repository.go выполняет операции с таблицами
// wallets, streaks, study_records и coin_transactions.
// Все изменения баланса идут через Mutate: одна транзакция БД с блокировкой строк.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/reward"
)

// Store: хранилище кошельков. Repository реализует его поверх PostgreSQL,
// тесты сервиса используют фейк в памяти.
type Store interface {
	// Ensure создаёт пустые кошелёк и серию, если их ещё нет.
	Ensure(ctx context.Context, userID int64) error
	// Load читает кошелёк и серию без блокировки. ErrUserNotFound, если кошелька нет.
	Load(ctx context.Context, userID int64) (reward.Wallet, reward.StreakRecord, error)
	// Mutate читает состояние под блокировкой, вызывает fn и сохраняет результат атомарно.
	// Ошибка fn откатывает транзакцию.
	Mutate(ctx context.Context, userID int64, fn func(m *Mutation) error) error
	// RecordExists: есть ли уже запись учебной сессии с таким id.
	RecordExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListRecords(ctx context.Context, userID int64, limit int) ([]reward.StudyRecord, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]Transaction, error)
	// ResetDaily обнуляет дневной счётчик у всех, чей день сброса раньше dayStart.
	ResetDaily(ctx context.Context, dayStart time.Time) (int64, error)
}

// Repository предоставляет методы для работы с кошельками в PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий кошельков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// execer: общее у пула и транзакции.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	selectWalletSQL = `
		SELECT id, user_id, balance, total_earned, daily_earned, last_study_date, last_reset_date
		FROM wallets
		WHERE user_id = $1`

	selectStreakSQL = `
		SELECT id, user_id, current_streak, longest_streak, last_study_date, bonus_multiplier
		FROM streaks
		WHERE user_id = $1`
)

// Ensure гарантирует, что у пользователя есть кошелёк и запись серии.
// Начальный баланс всегда 0 монет.
func (r *Repository) Ensure(ctx context.Context, userID int64) error {
	return ensureRows(ctx, r.db, userID)
}

func ensureRows(ctx context.Context, db execer, userID int64) error {
	if _, err := db.Exec(ctx, `
		INSERT INTO wallets (user_id, balance, total_earned, daily_earned)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, bonus_multiplier)
		VALUES ($1, 0, 0, 1.0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return fmt.Errorf("ошибка создания стрика: %w", err)
	}
	return nil
}

// Load возвращает кошелёк и серию пользователя.
func (r *Repository) Load(ctx context.Context, userID int64) (reward.Wallet, reward.StreakRecord, error) {
	w, err := scanWallet(r.db.QueryRow(ctx, selectWalletSQL, userID))
	if err != nil {
		return reward.Wallet{}, reward.StreakRecord{}, err
	}
	s, err := scanStreak(r.db.QueryRow(ctx, selectStreakSQL, userID))
	if errors.Is(err, common.ErrUserNotFound) {
		// Кошелёк есть, а серии нет: считаем серию пустой.
		return w, reward.StreakRecord{UserID: userID, BonusMultiplier: 1.0}, nil
	}
	if err != nil {
		return reward.Wallet{}, reward.StreakRecord{}, err
	}
	return w, s, nil
}

// Mutate: единственная точка изменения кошелька.
//
// Порядок:
//  1. Создаём строки, если их нет
//  2. SELECT ... FOR UPDATE кошелька, затем серии (всегда в этом порядке)
//  3. fn меняет Mutation
//  4. Записываем кошелёк и серию, добавляем запись сессии и транзакцию
//  5. COMMIT
func (r *Repository) Mutate(ctx context.Context, userID int64, fn func(m *Mutation) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureRows(ctx, tx, userID); err != nil {
		return err
	}

	w, err := scanWallet(tx.QueryRow(ctx, selectWalletSQL+" FOR UPDATE", userID))
	if err != nil {
		return err
	}
	s, err := scanStreak(tx.QueryRow(ctx, selectStreakSQL+" FOR UPDATE", userID))
	if err != nil {
		return err
	}

	m := &Mutation{Wallet: w, Streak: s}
	if err := fn(m); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $2, total_earned = $3, daily_earned = $4,
		    last_study_date = $5, last_reset_date = $6, updated_at = NOW()
		WHERE user_id = $1
	`, userID, m.Wallet.Balance, m.Wallet.TotalEarned, m.Wallet.DailyEarned,
		nullTime(m.Wallet.LastStudyDate), nullTime(m.Wallet.LastResetDate),
	); err != nil {
		return fmt.Errorf("ошибка обновления кошелька: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $2, longest_streak = $3, last_study_date = $4,
		    bonus_multiplier = $5, updated_at = NOW()
		WHERE user_id = $1
	`, userID, m.Streak.CurrentStreak, m.Streak.LongestStreak,
		nullTime(m.Streak.LastStudyDate), m.Streak.BonusMultiplier,
	); err != nil {
		return fmt.Errorf("ошибка обновления стрика: %w", err)
	}

	if rec := m.Record; rec != nil {
		tag, err := tx.Exec(ctx, `
			INSERT INTO study_records (id, user_id, start_time, end_time, duration_ms, coins_earned, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, userID, rec.StartTime, rec.EndTime, rec.Duration.Milliseconds(), rec.CoinsEarned, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка записи учебной сессии: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrSessionAlreadyAwarded
		}
	}

	if t := m.Transaction; t != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO coin_transactions (user_id, amount, transaction_type, description, session_id, actor_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, userID, t.Amount, t.Type, t.Description, t.SessionID, t.ActorID); err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// RecordExists проверяет, начислялись ли уже монеты за сессию id.
func (r *Repository) RecordExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM study_records WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки учебной сессии: %w", err)
	}
	return exists, nil
}

// ListRecords возвращает последние limit учебных сессий, новые первыми.
func (r *Repository) ListRecords(ctx context.Context, userID int64, limit int) ([]reward.StudyRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, start_time, end_time, duration_ms, coins_earned, created_at
		FROM study_records
		WHERE user_id = $1
		ORDER BY end_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения учебных сессий: %w", err)
	}
	defer rows.Close()

	var records []reward.StudyRecord
	for rows.Next() {
		var (
			rec        reward.StudyRecord
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.StartTime, &rec.EndTime,
			&durationMS, &rec.CoinsEarned, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования учебной сессии: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListTransactions возвращает последние limit операций пользователя.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, transaction_type, description, session_id, actor_id, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description,
			&t.SessionID, &t.ActorID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ResetDaily: полуночный сброс для всех кошельков сразу.
// Ленивый сброс в политике остаётся главным; это только выравнивает данные для отчётов.
func (r *Repository) ResetDaily(ctx context.Context, dayStart time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE wallets
		SET daily_earned = 0, last_reset_date = $1, updated_at = NOW()
		WHERE last_reset_date IS NULL OR last_reset_date < $1
	`, dayStart)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса дневных счётчиков: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWallet(row pgx.Row) (reward.Wallet, error) {
	var (
		w                    reward.Wallet
		lastStudy, lastReset *time.Time
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.TotalEarned, &w.DailyEarned, &lastStudy, &lastReset)
	if errors.Is(err, pgx.ErrNoRows) {
		return reward.Wallet{}, common.ErrUserNotFound
	}
	if err != nil {
		return reward.Wallet{}, fmt.Errorf("ошибка чтения кошелька: %w", err)
	}
	w.LastStudyDate = derefTime(lastStudy)
	w.LastResetDate = derefTime(lastReset)
	return w, nil
}

func scanStreak(row pgx.Row) (reward.StreakRecord, error) {
	var (
		s         reward.StreakRecord
		lastStudy *time.Time
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CurrentStreak, &s.LongestStreak, &lastStudy, &s.BonusMultiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return reward.StreakRecord{}, common.ErrUserNotFound
	}
	if err != nil {
		return reward.StreakRecord{}, fmt.Errorf("ошибка чтения стрика: %w", err)
	}
	s.LastStudyDate = derefTime(lastStudy)
	return s, nil
}

// nullTime превращает нулевое время в NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
