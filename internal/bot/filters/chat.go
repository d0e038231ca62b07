// Package filters решает, в каких чатах бот отвечает.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает личные сообщения и учебный групповой чат (если задан).
type ChatFilter struct {
	studyChatID int64
}

func NewChatFilter(studyChatID int64) *ChatFilter {
	return &ChatFilter{studyChatID: studyChatID}
}

// IsStudyChat: сообщение из учебного чата.
func (f *ChatFilter) IsStudyChat(chatID int64) bool {
	return f.studyChatID != 0 && chatID == f.studyChatID
}

func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// 1) Личка
	if message.Chat.Type == telego.ChatTypePrivate {
		return true
	}

	// 2) Учебный чат
	if f.IsStudyChat(message.Chat.ID) {
		return true
	}

	// 3) Остальные чаты игнорируем
	logger.Debug("deny: not study chat and not private")
	return false
}
