// Package common: errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бэкенда.
// Эти ошибки позволяют обработчикам (бот, HTTP API) различать типы проблем
// и показывать пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Ошибки начисления монет
var (
	// ErrInvalidInterval: время окончания сессии раньше времени начала
	ErrInvalidInterval = errors.New("время окончания раньше времени начала")
	// ErrDailyLimitReached: дневной лимит монет исчерпан (не ошибка системы, а правило)
	ErrDailyLimitReached = errors.New("дневной лимит монет исчерпан")
	// ErrSessionAlreadyAwarded: за эту учебную сессию монеты уже начислены
	ErrSessionAlreadyAwarded = errors.New("за эту сессию монеты уже начислены")
)

// Ошибки кошелька
var (
	// ErrInsufficientBalance: недостаточно монет на счёте
	ErrInsufficientBalance = errors.New("недостаточно монет на счёте")
	// ErrInvalidAmount: некорректная сумма (ноль или отрицательная).
	// Оборачивает ErrInsufficientBalance: для списаний это тот же отказ.
	ErrInvalidAmount = fmt.Errorf("%w: сумма должна быть положительной", ErrInsufficientBalance)
	// ErrUserNotFound: пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки таймера
var (
	// ErrNoActiveSession: у пользователя нет запущенного таймера
	ErrNoActiveSession = errors.New("таймер не запущен")
	// ErrSessionActive: таймер уже запущен
	ErrSessionActive = errors.New("таймер уже запущен")
	// ErrSessionIncomplete: таймер остановлен раньше цели, монеты не начисляются
	ErrSessionIncomplete = errors.New("сессия завершена досрочно, монеты не начислены")
	// ErrSessionPaused: действие недоступно, таймер на паузе
	ErrSessionPaused = errors.New("таймер на паузе")
	// ErrSessionRunning: действие недоступно, таймер уже идёт
	ErrSessionRunning = errors.New("таймер уже идёт")
	// ErrInvalidDuration: длительность таймера вне допустимого диапазона
	ErrInvalidDuration = errors.New("недопустимая длительность таймера")
)

// Ошибки админки
var (
	// ErrNotAdmin: пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword: неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired: сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// ErrLockTimeout: не удалось дождаться блокировки пользователя
var ErrLockTimeout = errors.New("операция пользователя уже выполняется, попробуйте позже")
