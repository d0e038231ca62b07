package reward

import "time"

// dayNumber: порядковый номер календарного дня t в поясе loc.
// Считается через UTC-полночь той же даты, поэтому переходы на летнее время не мешают.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DaysBetween: сколько календарных дней от from до to в часовом поясе to.
// Отрицательное значение: to раньше from.
func DaysBetween(from, to time.Time) int64 {
	loc := to.Location()
	return dayNumber(to, loc) - dayNumber(from, loc)
}

// SameDay: один ли календарный день у a и b (в часовом поясе b).
// Нулевое время никогда не совпадает с реальной датой.
func SameDay(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return false
	}
	return DaysBetween(a, b) == 0
}
