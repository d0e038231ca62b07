package filters

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestCheckAccess(t *testing.T) {
	const studyChat int64 = -1001

	user := &telego.User{ID: 7, FirstName: "Аня"}
	bot := &telego.User{ID: 8, IsBot: true}

	tests := []struct {
		name        string
		studyChatID int64
		msg         *telego.Message
		want        bool
	}{
		{"nil message", studyChat, nil, false},
		{"private", studyChat, &telego.Message{Chat: telego.Chat{ID: 7, Type: telego.ChatTypePrivate}, From: user}, true},
		{"study chat", studyChat, &telego.Message{Chat: telego.Chat{ID: studyChat, Type: telego.ChatTypeSupergroup}, From: user}, true},
		{"other group", studyChat, &telego.Message{Chat: telego.Chat{ID: -2002, Type: telego.ChatTypeGroup}, From: user}, false},
		{"group without study chat", 0, &telego.Message{Chat: telego.Chat{ID: studyChat, Type: telego.ChatTypeSupergroup}, From: user}, false},
		{"channel post without sender", studyChat, &telego.Message{Chat: telego.Chat{ID: studyChat, Type: telego.ChatTypeSupergroup}}, false},
		{"bot sender", studyChat, &telego.Message{Chat: telego.Chat{ID: 8, Type: telego.ChatTypePrivate}, From: bot}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewChatFilter(tt.studyChatID)
			if got := f.CheckAccess(tt.msg); got != tt.want {
				t.Fatalf("CheckAccess = %v, want %v", got, tt.want)
			}
		})
	}
}
