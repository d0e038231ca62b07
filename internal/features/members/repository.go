// Package members: repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studygarden.ru/backend/internal/common"
)

// Store: хранилище участников.
type Store interface {
	Upsert(ctx context.Context, p Profile) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	GetByUsername(ctx context.Context, username string) (*Member, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет участника или обновляет имя/username существующего.
func (r *Repository) Upsert(ctx context.Context, p Profile) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
		WHERE members.username IS DISTINCT FROM EXCLUDED.username
		   OR members.first_name IS DISTINCT FROM EXCLUDED.first_name
		   OR members.last_name IS DISTINCT FROM EXCLUDED.last_name
	`
	if _, err := r.db.Exec(ctx, query, p.UserID, p.Username, p.FirstName, p.LastName); err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

const selectMember = `
	SELECT id, user_id, username, first_name, last_name, joined_at, updated_at
	FROM members
`

// GetByUserID возвращает common.ErrUserNotFound, если участника нет.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, selectMember+`WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("участник user_id=%d: %w", userID, err)
	}
	return m, nil
}

// GetByUsername ищет без учёта регистра. Если не найден: common.ErrUserNotFound.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, selectMember+`WHERE LOWER(username) = LOWER($1)`, username))
	if err != nil {
		return nil, fmt.Errorf("участник username=%s: %w", username, err)
	}
	return m, nil
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника: %w", err)
	}
	return &m, nil
}
