// Package reward: policy.go содержит правила начисления:
// монеты за время учёбы, дневной лимит и бонус за серию дней.
package reward

import (
	"fmt"
	"math"
	"time"

	"studygarden.ru/backend/internal/common"
)

// Настройки по умолчанию.
const (
	DefaultSecondsPerCoin        = 600 // 1 монета за 10 минут
	DefaultDailyCoinLimit        = 80
	DefaultStreakBonusThreshold  = 7
	DefaultStreakBonusMultiplier = 1.1
)

// Policy: настраиваемые правила начисления.
type Policy struct {
	SecondsPerCoin        int64   // Секунд учёбы на одну монету (coinsPerSecond = 1/SecondsPerCoin)
	DailyCoinLimit        int64   // Жёсткий потолок монет в день
	StreakBonusThreshold  int     // Сколько дней серии нужно для бонуса
	StreakBonusMultiplier float64 // Множитель при активном бонусе
}

// DefaultPolicy возвращает правила приложения: 600 с / монета, 80 в день, бонус ×1.1 с 7-го дня.
func DefaultPolicy() Policy {
	return Policy{
		SecondsPerCoin:        DefaultSecondsPerCoin,
		DailyCoinLimit:        DefaultDailyCoinLimit,
		StreakBonusThreshold:  DefaultStreakBonusThreshold,
		StreakBonusMultiplier: DefaultStreakBonusMultiplier,
	}
}

// Validate проверяет, что настройки имеют смысл.
func (p Policy) Validate() error {
	if p.SecondsPerCoin <= 0 {
		return fmt.Errorf("SecondsPerCoin должен быть > 0, получено %d", p.SecondsPerCoin)
	}
	if p.DailyCoinLimit <= 0 {
		return fmt.Errorf("DailyCoinLimit должен быть > 0, получено %d", p.DailyCoinLimit)
	}
	if p.StreakBonusThreshold < 0 {
		return fmt.Errorf("StreakBonusThreshold не может быть отрицательным")
	}
	if p.StreakBonusMultiplier < 1 || math.IsNaN(p.StreakBonusMultiplier) || math.IsInf(p.StreakBonusMultiplier, 0) {
		return fmt.Errorf("StreakBonusMultiplier должен быть >= 1, получено %v", p.StreakBonusMultiplier)
	}
	// Бонус считается в тысячных: 1.1 подходит, 1.0005 уже нет
	if pm := p.StreakBonusMultiplier * 1000; math.Abs(pm-math.Round(pm)) > 1e-6 {
		return fmt.Errorf("StreakBonusMultiplier задаётся с точностью до 0.001, получено %v", p.StreakBonusMultiplier)
	}
	return nil
}

// CoinsPerSecond возвращает скорость начисления (1/600 по умолчанию).
func (p Policy) CoinsPerSecond() float64 {
	return 1 / float64(p.SecondsPerCoin)
}

// bonusPermille: множитель в тысячных (1.1 → 1100).
// Целочисленная арифметика: floor(10 × 1.1) = 11, без сюрпризов float.
// Round здесь точен, потому что Validate пропускает только целые тысячные.
func (p Policy) bonusPermille() int64 {
	return int64(math.Round(p.StreakBonusMultiplier * 1000))
}

// ResetDailyIfNeeded обнуляет дневной счётчик, если today: другой календарный день,
// чем LastResetDate. Иначе возвращает кошелёк без изменений.
// Календарный день считается в часовом поясе today.
func (p Policy) ResetDailyIfNeeded(w Wallet, today time.Time) Wallet {
	if SameDay(w.LastResetDate, today) {
		return w
	}
	w.DailyEarned = 0
	w.LastResetDate = today
	return w
}

// BaseCoins: floor(длительность / SecondsPerCoin). 599 с → 0, 600 с → 1.
func (p Policy) BaseCoins(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / (time.Duration(p.SecondsPerCoin) * time.Second))
}

// DailyRemaining: сколько ещё можно заработать сегодня (не меньше 0).
// Кошелёк должен быть уже пропущен через ResetDailyIfNeeded.
func (p Policy) DailyRemaining(w Wallet) int64 {
	remaining := p.DailyCoinLimit - w.DailyEarned
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BonusActive: действует ли бонус для текущего состояния серии.
func (p Policy) BonusActive(s StreakRecord) bool {
	return s.CurrentStreak >= p.StreakBonusThreshold
}

// MultiplierFor возвращает множитель для длины серии: бонусный или 1.0.
func (p Policy) MultiplierFor(streak int) float64 {
	if streak >= p.StreakBonusThreshold {
		return p.StreakBonusMultiplier
	}
	return 1.0
}

// applyBonus применяет множитель к уже ограниченной лимитом сумме.
// В бонусные дни итог может превысить лимит: 80 → 88. Порядок «сначала лимит, потом бонус» сохранён намеренно.
func (p Policy) applyBonus(coins int64, active bool) int64 {
	if !active {
		return coins
	}
	return coins * p.bonusPermille() / 1000
}

// cappedCoins выполняет шаги 1–4 начисления: сброс дня, базовые монеты, лимит.
func (p Policy) cappedCoins(d time.Duration, w Wallet, today time.Time) (base, capped int64, w0 Wallet) {
	w0 = p.ResetDailyIfNeeded(w, today)
	base = p.BaseCoins(d)
	capped = min(base, p.DailyRemaining(w0))
	return base, capped, w0
}

// AwardForSession превращает учебный интервал в монеты и новые снимки кошелька и стрика.
//
// Алгоритм:
//  1. Сбрасываем дневной счётчик, если endTime: новый день
//  2. Базовые монеты: floor((end − start) / SecondsPerCoin)
//  3. Ограничиваем остатком дневного лимита
//  4. Если получилось 0: ErrDailyLimitReached, состояние не меняется
//  5. Бонус за серию (по состоянию ДО этой сессии) применяется к ограниченной сумме
//  6. Обновляем кошелёк и серию, формируем запись сессии
//
// ID и CreatedAt записи заполняет вызывающий код.
func (p Policy) AwardForSession(w Wallet, s StreakRecord, start, end time.Time) (Result, error) {
	if end.Before(start) {
		return Result{}, common.ErrInvalidInterval
	}

	duration := end.Sub(start)
	base, capped, w0 := p.cappedCoins(duration, w, end)
	if capped <= 0 {
		return Result{}, common.ErrDailyLimitReached
	}

	bonus := p.BonusActive(s)
	final := p.applyBonus(capped, bonus)

	w1 := w0
	w1.Balance += final
	w1.TotalEarned += final
	// В бонусный день итог может быть больше остатка лимита; счётчик дня не выходит за лимит.
	// Инвариант модели: 0 ≤ DailyEarned ≤ DailyCoinLimit. Ограничение не убирать.
	w1.DailyEarned = min(w0.DailyEarned+final, p.DailyCoinLimit)
	w1.LastStudyDate = end

	return Result{
		BaseCoins:    base,
		CappedCoins:  capped,
		CoinsAwarded: final,
		BonusApplied: bonus,
		Wallet:       w1,
		Streak:       p.AdvanceStreak(s, end),
		Record: StudyRecord{
			UserID:      w.UserID,
			StartTime:   start,
			EndTime:     end,
			Duration:    duration,
			CoinsEarned: final,
		},
	}, nil
}

// AdvanceStreak: переход серии по времени окончания новой сессии.
//
//   - тот же календарный день → без изменений
//   - следующий календарный день → +1
//   - любой другой разрыв (2+ дня или время в прошлом) → серия начинается заново с 1
//
// Пустая серия (CurrentStreak == 0) всегда начинается с 1.
func (p Policy) AdvanceStreak(s StreakRecord, at time.Time) StreakRecord {
	if s.CurrentStreak > 0 && SameDay(s.LastStudyDate, at) {
		return s
	}

	if s.CurrentStreak > 0 && DaysBetween(s.LastStudyDate, at) == 1 {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}

	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	s.LastStudyDate = at
	s.BonusMultiplier = p.MultiplierFor(s.CurrentStreak)
	return s
}

// Spend списывает amount монет. Меняется только Balance.
func (p Policy) Spend(w Wallet, amount int64) (Wallet, error) {
	if amount <= 0 {
		return w, common.ErrInvalidAmount
	}
	if w.Balance < amount {
		return w, common.ErrInsufficientBalance
	}
	w.Balance -= amount
	return w, nil
}

// Credit: ручное начисление администратором. Идёт мимо дневного лимита
// и не трогает DailyEarned, но учитывается в TotalEarned.
func (p Policy) Credit(w Wallet, amount int64) (Wallet, error) {
	if amount <= 0 {
		return w, common.ErrInvalidAmount
	}
	w.Balance += amount
	w.TotalEarned += amount
	return w, nil
}

// EstimateCoins считает прогноз для экрана таймера: та же арифметика лимита и бонуса,
// что и в AwardForSession, без изменения состояния. Возвращает 0, если лимит исчерпан.
func (p Policy) EstimateCoins(d time.Duration, w Wallet, s StreakRecord, today time.Time) int64 {
	_, capped, _ := p.cappedCoins(d, w, today)
	if capped <= 0 {
		return 0
	}
	return p.applyBonus(capped, p.BonusActive(s))
}

// Summarize собирает сводку кошелька на момент today (с ленивым сбросом дня).
func (p Policy) Summarize(w Wallet, s StreakRecord, today time.Time) Summary {
	w0 := p.ResetDailyIfNeeded(w, today)
	daysToBonus := p.StreakBonusThreshold - s.CurrentStreak
	if daysToBonus < 0 {
		daysToBonus = 0
	}
	return Summary{
		Balance:         w0.Balance,
		TotalEarned:     w0.TotalEarned,
		DailyEarned:     w0.DailyEarned,
		DailyRemaining:  p.DailyRemaining(w0),
		DailyLimit:      p.DailyCoinLimit,
		CurrentStreak:   s.CurrentStreak,
		LongestStreak:   s.LongestStreak,
		BonusActive:     p.BonusActive(s),
		BonusMultiplier: p.MultiplierFor(s.CurrentStreak),
		DaysToBonus:     daysToBonus,
	}
}
