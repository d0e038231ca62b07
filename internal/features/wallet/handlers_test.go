package wallet

import (
	"strings"
	"testing"
	"time"

	"studygarden.ru/backend/internal/features/reward"
)

func TestFormatSummary(t *testing.T) {
	tests := []struct {
		name string
		sum  reward.Summary
		want []string
	}{
		{
			name: "no bonus yet",
			sum: reward.Summary{
				Balance: 42, DailyEarned: 30, DailyRemaining: 50, DailyLimit: 80,
				CurrentStreak: 5, DaysToBonus: 2, BonusMultiplier: 1,
			},
			want: []string{"42 монеты", "30/80", "осталось 50 монет", "5 дней", "до бонуса 2 дня"},
		},
		{
			name: "bonus active",
			sum: reward.Summary{
				Balance: 1, DailyLimit: 80, DailyRemaining: 80,
				CurrentStreak: 21, BonusActive: true, BonusMultiplier: 1.1,
			},
			want: []string{"1 монета", "21 день", "бонус ×1.1 активен"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSummary(tt.sum)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("summary %q does not contain %q", got, w)
				}
			}
		})
	}
}

func TestFormatTransactionsSpoiler(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	var txs []Transaction
	for i := 0; i < 7; i++ {
		txs = append(txs, Transaction{Amount: int64(i - 3), Description: "op", CreatedAt: at})
	}

	got := FormatTransactions(txs, time.UTC)
	if strings.Count(got, "||") != 2 {
		t.Fatalf("expected spoiler around the tail, got %q", got)
	}
	if !strings.Contains(got, "-3 монеты") || !strings.Contains(got, "+3 монеты") {
		t.Fatalf("amounts must carry their sign: %q", got)
	}

	short := FormatTransactions(txs[:3], time.UTC)
	if strings.Contains(short, "||") {
		t.Fatalf("short list must not use spoiler: %q", short)
	}
}
