// Package session реализует учебный таймер: запуск на 25/45/60 минут, пауза, продолжение
// и остановка. Полностью отработанный таймер превращается в начисление монет.
// models.go описывает активный таймер и его представление для клиентов.
package session

import (
	"time"

	"github.com/google/uuid"
)

// ActiveSession: запущенный таймер пользователя (не больше одного на пользователя).
//
// Активное время = Accumulated + (now − ResumedAt), если таймер идёт.
// Время на паузе не считается.
type ActiveSession struct {
	ID          uuid.UUID     `json:"id"` // Он же id учебной записи: ключ идемпотентности начисления
	UserID      int64         `json:"userId"`
	ChatID      int64         `json:"chatId"` // Куда сообщить о завершении (0: не сообщать)
	Target      time.Duration `json:"target"`
	StartedAt   time.Time     `json:"startedAt"`
	ResumedAt   time.Time     `json:"resumedAt"`   // Начало текущего отрезка без паузы
	Accumulated time.Duration `json:"accumulated"` // Активное время до ResumedAt
	Paused      bool          `json:"paused"`
	PausedAt    time.Time     `json:"pausedAt,omitempty"`
}

// Elapsed: активное (без пауз) время таймера на момент now.
func (s *ActiveSession) Elapsed(now time.Time) time.Duration {
	e := s.Accumulated
	if !s.Paused && now.After(s.ResumedAt) {
		e += now.Sub(s.ResumedAt)
	}
	return e
}

// Remaining: сколько осталось до цели (не меньше 0).
func (s *ActiveSession) Remaining(now time.Time) time.Duration {
	r := s.Target - s.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// Done: отработана ли цель.
func (s *ActiveSession) Done(now time.Time) bool {
	return s.Elapsed(now) >= s.Target
}

// FinishedAt: момент, когда активное время достигло цели.
// Фоновая проверка запускается раз в минуту, поэтому конец интервала
// берётся отсюда, а не из времени проверки.
func (s *ActiveSession) FinishedAt(now time.Time) time.Time {
	if s.Paused {
		if s.Accumulated > s.Target {
			return s.PausedAt.Add(s.Target - s.Accumulated)
		}
		return s.PausedAt
	}
	if s.Accumulated >= s.Target {
		return s.ResumedAt
	}
	at := s.ResumedAt.Add(s.Target - s.Accumulated)
	if at.After(now) {
		return now
	}
	return at
}

// Status: состояние таймера для бота и API.
type Status struct {
	SessionID        uuid.UUID `json:"sessionId"`
	TargetSeconds    int64     `json:"targetSeconds"`
	ElapsedSeconds   int64     `json:"elapsedSeconds"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Paused           bool      `json:"paused"`
	StartedAt        time.Time `json:"startedAt"`
	EstimatedCoins   int64     `json:"estimatedCoins"` // Сколько принесёт таймер, если его дождаться
}

// StatusAt строит Status на момент now.
func (s *ActiveSession) StatusAt(now time.Time) Status {
	return Status{
		SessionID:        s.ID,
		TargetSeconds:    int64(s.Target / time.Second),
		ElapsedSeconds:   int64(s.Elapsed(now) / time.Second),
		RemainingSeconds: int64(s.Remaining(now) / time.Second),
		Paused:           s.Paused,
		StartedAt:        s.StartedAt,
	}
}
