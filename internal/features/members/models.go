// Package members ведёт реестр пользователей Telegram, которые пользуются ботом.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Member представляет пользователя в базе данных.
// Запись создаётся при первом сообщении боту или вступлении в учебный чат.
type Member struct {
	ID        int64     `db:"id" json:"id"`                // Автоинкрементный ID записи в БД
	UserID    int64     `db:"user_id" json:"userId"`       // Telegram user ID (уникальный)
	Username  string    `db:"username" json:"username"`    // @username (может быть пустым)
	FirstName string    `db:"first_name" json:"firstName"` // Имя пользователя
	LastName  string    `db:"last_name" json:"lastName"`   // Фамилия (может быть пустой)
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`   // Когда впервые появился
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"` // Последнее обновление записи
}

// Profile: данные из Telegram, которые могут меняться со временем.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username, возвращает его, иначе имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}
