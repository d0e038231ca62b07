package session

import (
	"strings"
	"testing"
	"time"

	"studygarden.ru/backend/internal/features/wallet"
)

func TestFormatCompletion(t *testing.T) {
	sess := ActiveSession{Target: 45 * time.Minute}

	tests := []struct {
		name string
		c    Completion
		want []string
	}{
		{
			name: "awarded with bonus",
			c: Completion{Session: sess, Award: &wallet.Award{
				CoinsAwarded: 4, BonusApplied: true, Balance: 104, Streak: 8,
			}},
			want: []string{"45 минут", "+4 монеты", "бонус", "104 монеты", "8 дней"},
		},
		{
			name: "limit reached",
			c:    Completion{Session: sess, LimitReached: true},
			want: []string{"лимит"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCompletion(&tt.c)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("%q does not contain %q", got, w)
				}
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	got := FormatStatus(&Status{ElapsedSeconds: 600, RemainingSeconds: 900, Paused: true, EstimatedCoins: 2})
	for _, w := range []string{"На паузе", "10:00", "15:00", "2 монеты"} {
		if !strings.Contains(got, w) {
			t.Errorf("%q does not contain %q", got, w)
		}
	}
}
