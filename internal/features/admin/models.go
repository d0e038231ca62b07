// Package admin реализует админ-панель с парольной аутентификацией.
// models.go описывает структуры сессий, попыток входа и состояния диалога.
package admin

import "time"

// AdminSession: активная сессия администратора.
type AdminSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt: попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// DialogState: состояние диалога с админом (конечный автомат).
// Панель работает по шагам: выбор действия → выбор пользователя → ввод суммы.
type DialogState struct {
	State      string    // Текущее состояние ("", "awaiting_password", "grant_user", ...)
	TargetID   int64     // Выбранный пользователь
	TargetName string    // Как его показывать в ответах
	ExpiresAt  time.Time // Когда состояние истекает (5 минут)
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль
	StateGrantUser        = "grant_user"        // Ждём пользователя для начисления
	StateGrantAmount      = "grant_amount"      // Ждём сумму начисления
	StateViewWallet       = "view_wallet"       // Ждём пользователя для просмотра кошелька
)

// Кнопки клавиатуры админ-панели
const (
	ButtonGrant  = "Начислить монеты"
	ButtonWallet = "Кошелёк участника"
	ButtonLogout = "Выйти"
	ButtonCancel = "Отмена"
)

const (
	sessionTTL     = 24 * time.Hour
	stateTTL       = 5 * time.Minute
	attemptsWindow = time.Hour
	maxAttempts    = 3
)
