package reward

import (
	"errors"
	"testing"
	"time"

	"studygarden.ru/backend/internal/common"
)

var msk = time.FixedZone("MSK", 3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, msk)
}

func freshWallet() Wallet {
	return Wallet{UserID: 42}
}

func TestBaseCoinsBoundary(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		seconds int
		want    int64
	}{
		{0, 0},
		{599, 0},
		{600, 1},
		{1199, 1},
		{1500, 2},
		{3000, 5},
	}
	for _, tc := range cases {
		if got := p.BaseCoins(time.Duration(tc.seconds) * time.Second); got != tc.want {
			t.Errorf("BaseCoins(%ds) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
	if got := p.BaseCoins(599*time.Second + 999*time.Millisecond); got != 0 {
		t.Fatalf("fractional second below boundary must floor to 0, got %d", got)
	}
}

func TestAwardShortSessionHitsLimitError(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 9, 0)
	_, err := p.AwardForSession(freshWallet(), StreakRecord{}, start, start.Add(599*time.Second))
	if !errors.Is(err, common.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached for 599s, got %v", err)
	}

	res, err := p.AwardForSession(freshWallet(), StreakRecord{}, start, start.Add(600*time.Second))
	if err != nil {
		t.Fatalf("award 600s: %v", err)
	}
	if res.CoinsAwarded != 1 {
		t.Fatalf("expected 1 coin for 600s, got %d", res.CoinsAwarded)
	}
}

func TestAwardScenarioBasic(t *testing.T) {
	p := DefaultPolicy()
	w := freshWallet()
	w.Balance = 3
	start := at(10, 9, 0)

	res, err := p.AwardForSession(w, StreakRecord{}, start, start.Add(1500*time.Second))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.BaseCoins != 2 || res.CoinsAwarded != 2 || res.BonusApplied {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Wallet.Balance != 5 || res.Wallet.TotalEarned != 2 || res.Wallet.DailyEarned != 2 {
		t.Fatalf("unexpected wallet: %+v", res.Wallet)
	}
	if !res.Wallet.LastStudyDate.Equal(start.Add(1500 * time.Second)) {
		t.Fatalf("LastStudyDate not set to end time: %v", res.Wallet.LastStudyDate)
	}
	if res.Streak.CurrentStreak != 1 || res.Streak.LongestStreak != 1 || res.Streak.BonusMultiplier != 1.0 {
		t.Fatalf("unexpected streak: %+v", res.Streak)
	}
	if res.Record.CoinsEarned != 2 || res.Record.Duration != 1500*time.Second || res.Record.UserID != 42 {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
}

func TestAwardScenarioCappedByDailyLimit(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 12, 0)
	w := freshWallet()
	w.DailyEarned = 79
	w.LastResetDate = at(10, 0, 5)

	res, err := p.AwardForSession(w, StreakRecord{}, start, start.Add(3000*time.Second))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.BaseCoins != 5 || res.CappedCoins != 1 || res.CoinsAwarded != 1 {
		t.Fatalf("expected 5 capped to 1, got %+v", res)
	}
	if res.Wallet.DailyEarned != 80 {
		t.Fatalf("expected dailyEarned 80, got %d", res.Wallet.DailyEarned)
	}
}

func TestAwardScenarioLimitReachedLeavesStateUntouched(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 18, 0)
	w := freshWallet()
	w.Balance = 100
	w.DailyEarned = 80
	w.LastResetDate = at(10, 8, 0)
	s := StreakRecord{CurrentStreak: 3, LongestStreak: 3, LastStudyDate: at(9, 20, 0), BonusMultiplier: 1}

	res, err := p.AwardForSession(w, s, start, start.Add(2*time.Hour))
	if !errors.Is(err, common.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("expected empty result on error, got %+v", res)
	}
	if w.Balance != 100 || w.DailyEarned != 80 || s.CurrentStreak != 3 {
		t.Fatal("inputs must not be mutated")
	}
}

func TestAwardScenarioStreakBonus(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 9, 0)
	s := StreakRecord{CurrentStreak: 7, LongestStreak: 7, LastStudyDate: at(9, 21, 0), BonusMultiplier: 1.1}

	res, err := p.AwardForSession(freshWallet(), s, start, start.Add(100*time.Minute))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.CappedCoins != 10 || res.CoinsAwarded != 11 || !res.BonusApplied {
		t.Fatalf("expected floor(10*1.1)=11, got %+v", res)
	}
	if res.Streak.CurrentStreak != 8 || res.Streak.BonusMultiplier != 1.1 {
		t.Fatalf("unexpected streak: %+v", res.Streak)
	}
}

func TestBonusAppliedAfterCap(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 6, 0)
	s := StreakRecord{CurrentStreak: 9, LongestStreak: 9, LastStudyDate: at(9, 6, 0), BonusMultiplier: 1.1}

	res, err := p.AwardForSession(freshWallet(), s, start, start.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.CappedCoins != 80 || res.CoinsAwarded != 88 {
		t.Fatalf("expected 80 capped then 88 with bonus, got %+v", res)
	}
	if res.Wallet.DailyEarned != 80 {
		t.Fatalf("daily counter must stay within limit, got %d", res.Wallet.DailyEarned)
	}

	_, err = p.AwardForSession(res.Wallet, res.Streak, start.Add(16*time.Hour), start.Add(17*time.Hour))
	if !errors.Is(err, common.ErrDailyLimitReached) {
		t.Fatalf("expected limit after bonus day payout, got %v", err)
	}
}

func TestBonusFloorsFraction(t *testing.T) {
	p := DefaultPolicy()
	s := StreakRecord{CurrentStreak: 7, LastStudyDate: at(9, 10, 0)}
	start := at(10, 10, 0)
	res, err := p.AwardForSession(freshWallet(), s, start, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.CoinsAwarded != 3 {
		t.Fatalf("floor(3*1.1) = 3, got %d", res.CoinsAwarded)
	}
}

func TestAwardInvalidInterval(t *testing.T) {
	p := DefaultPolicy()
	start := at(10, 10, 0)
	_, err := p.AwardForSession(freshWallet(), StreakRecord{}, start, start.Add(-time.Second))
	if !errors.Is(err, common.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestDailyEarnedNeverExceedsLimitWithinDay(t *testing.T) {
	p := DefaultPolicy()
	w := freshWallet()
	s := StreakRecord{}
	clock := at(10, 0, 30)
	for i := 0; i < 30; i++ {
		end := clock.Add(35 * time.Minute)
		res, err := p.AwardForSession(w, s, clock, end)
		switch {
		case err == nil:
			w, s = res.Wallet, res.Streak
		case errors.Is(err, common.ErrDailyLimitReached):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
		if w.DailyEarned > p.DailyCoinLimit {
			t.Fatalf("dailyEarned %d exceeds limit", w.DailyEarned)
		}
		clock = end
	}
	if w.DailyEarned != p.DailyCoinLimit {
		t.Fatalf("expected to reach the limit exactly, got %d", w.DailyEarned)
	}
}

func TestResetDailyIfNeeded(t *testing.T) {
	p := DefaultPolicy()
	w := freshWallet()
	w.DailyEarned = 50
	w.LastResetDate = at(10, 1, 0)

	same := p.ResetDailyIfNeeded(w, at(10, 23, 59))
	if same != w {
		t.Fatalf("same day must return wallet unchanged, got %+v", same)
	}

	next := p.ResetDailyIfNeeded(w, at(11, 0, 0))
	if next.DailyEarned != 0 || !next.LastResetDate.Equal(at(11, 0, 0)) {
		t.Fatalf("new day must reset, got %+v", next)
	}

	zero := p.ResetDailyIfNeeded(Wallet{DailyEarned: 5}, at(11, 0, 0))
	if zero.DailyEarned != 0 {
		t.Fatalf("wallet without reset date must reset, got %+v", zero)
	}
}

func TestResetUsesCallerTimezone(t *testing.T) {
	p := DefaultPolicy()
	w := freshWallet()
	w.DailyEarned = 10
	// 22:30 UTC 10 марта: это уже 01:30 11 марта по Москве.
	w.LastResetDate = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC).In(msk)

	got := p.ResetDailyIfNeeded(w, today)
	if got.DailyEarned != 0 {
		t.Fatalf("expected reset across Moscow midnight, got %+v", got)
	}
}

func TestAdvanceStreakTransitions(t *testing.T) {
	p := DefaultPolicy()
	base := StreakRecord{CurrentStreak: 3, LongestStreak: 5, LastStudyDate: at(10, 20, 0), BonusMultiplier: 1}

	cases := []struct {
		name        string
		at          time.Time
		wantCurrent int
		wantLongest int
	}{
		{"same day keeps streak", at(10, 23, 0), 3, 5},
		{"next day advances", at(11, 0, 10), 4, 5},
		{"next day late evening advances", at(11, 23, 59), 4, 5},
		{"two day gap resets", at(12, 8, 0), 1, 5},
		{"time in the past resets", at(8, 8, 0), 1, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.AdvanceStreak(base, tc.at)
			if got.CurrentStreak != tc.wantCurrent || got.LongestStreak != tc.wantLongest {
				t.Fatalf("got current=%d longest=%d", got.CurrentStreak, got.LongestStreak)
			}
		})
	}

	same := p.AdvanceStreak(base, at(10, 23, 0))
	if same != base {
		t.Fatalf("same day must return the record unchanged, got %+v", same)
	}
}

func TestAdvanceStreakFreshRecordStartsAtOne(t *testing.T) {
	p := DefaultPolicy()
	got := p.AdvanceStreak(StreakRecord{UserID: 1}, at(10, 9, 0))
	if got.CurrentStreak != 1 || got.LongestStreak != 1 || !got.LastStudyDate.Equal(at(10, 9, 0)) {
		t.Fatalf("unexpected fresh streak: %+v", got)
	}
}

func TestStreakLongestMonotonicAndBonusFlag(t *testing.T) {
	p := DefaultPolicy()
	s := StreakRecord{}
	longest := 0
	days := []int{1, 2, 3, 4, 5, 6, 7, 8, 10, 11, 12, 20}
	for _, d := range days {
		s = p.AdvanceStreak(s, at(d, 12, 0))
		if s.LongestStreak < longest {
			t.Fatalf("longest decreased on day %d: %d < %d", d, s.LongestStreak, longest)
		}
		longest = s.LongestStreak
		if s.LongestStreak < s.CurrentStreak {
			t.Fatalf("longest < current on day %d", d)
		}
		wantMult := 1.0
		if s.CurrentStreak >= 7 {
			wantMult = 1.1
		}
		if s.BonusMultiplier != wantMult {
			t.Fatalf("day %d streak %d: multiplier %v, want %v", d, s.CurrentStreak, s.BonusMultiplier, wantMult)
		}
	}
	if longest != 8 || s.CurrentStreak != 1 {
		t.Fatalf("expected longest 8 and current 1, got %d/%d", longest, s.CurrentStreak)
	}
}

func TestSpend(t *testing.T) {
	p := DefaultPolicy()
	w := Wallet{Balance: 5, TotalEarned: 40, DailyEarned: 3}

	got, err := p.Spend(w, 10)
	if !errors.Is(err, common.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got.Balance != 5 {
		t.Fatalf("balance must stay 5, got %d", got.Balance)
	}

	_, err = p.Spend(w, 0)
	if !errors.Is(err, common.ErrInsufficientBalance) || !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("zero amount must be rejected, got %v", err)
	}

	got, err = p.Spend(w, 5)
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if got.Balance != 0 || got.TotalEarned != 40 || got.DailyEarned != 3 {
		t.Fatalf("spend must only change balance, got %+v", got)
	}
}

func TestCredit(t *testing.T) {
	p := DefaultPolicy()
	got, err := p.Credit(Wallet{Balance: 1, DailyEarned: 80}, 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got.Balance != 101 || got.TotalEarned != 100 || got.DailyEarned != 80 {
		t.Fatalf("unexpected wallet: %+v", got)
	}
	if _, err := p.Credit(Wallet{}, -1); !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestEstimateMatchesAward(t *testing.T) {
	p := DefaultPolicy()
	today := at(10, 15, 0)
	wallets := []Wallet{
		{},
		{DailyEarned: 79, LastResetDate: at(10, 1, 0)},
		{DailyEarned: 80, LastResetDate: at(10, 1, 0)},
		{DailyEarned: 80, LastResetDate: at(9, 1, 0)},
	}
	streaks := []StreakRecord{
		{},
		{CurrentStreak: 7, LastStudyDate: at(9, 10, 0)},
	}
	durations := []time.Duration{0, 599 * time.Second, 25 * time.Minute, 45 * time.Minute, 20 * time.Hour}

	for _, w := range wallets {
		for _, s := range streaks {
			for _, d := range durations {
				estimate := p.EstimateCoins(d, w, s, today)
				res, err := p.AwardForSession(w, s, today.Add(-d), today)
				var awarded int64
				if err == nil {
					awarded = res.CoinsAwarded
				} else if !errors.Is(err, common.ErrDailyLimitReached) {
					t.Fatalf("unexpected error: %v", err)
				}
				if estimate != awarded {
					t.Fatalf("estimate %d != award %d (wallet %+v streak %+v duration %v)", estimate, awarded, w, s, d)
				}
			}
		}
	}
}

func TestEstimateBonusDayExceedsNominalCap(t *testing.T) {
	p := DefaultPolicy()
	s := StreakRecord{CurrentStreak: 7}
	if got := p.EstimateCoins(24*time.Hour, Wallet{}, s, at(10, 12, 0)); got != 88 {
		t.Fatalf("expected 88, got %d", got)
	}
	if got := p.EstimateCoins(-time.Minute, Wallet{}, s, at(10, 12, 0)); got != 0 {
		t.Fatalf("negative duration estimate must be 0, got %d", got)
	}
}

func TestSummarize(t *testing.T) {
	p := DefaultPolicy()
	w := Wallet{Balance: 12, TotalEarned: 30, DailyEarned: 30, LastResetDate: at(9, 10, 0)}
	s := StreakRecord{CurrentStreak: 4, LongestStreak: 6}

	sum := p.Summarize(w, s, at(10, 10, 0))
	if sum.DailyEarned != 0 || sum.DailyRemaining != 80 {
		t.Fatalf("summary must apply the lazy reset, got %+v", sum)
	}
	if sum.BonusActive || sum.DaysToBonus != 3 || sum.BonusMultiplier != 1.0 {
		t.Fatalf("unexpected bonus fields: %+v", sum)
	}

	sum = p.Summarize(w, StreakRecord{CurrentStreak: 9}, at(9, 11, 0))
	if sum.DailyRemaining != 50 || !sum.BonusActive || sum.DaysToBonus != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := []Policy{
		{SecondsPerCoin: 0, DailyCoinLimit: 80, StreakBonusMultiplier: 1.1},
		{SecondsPerCoin: 600, DailyCoinLimit: 0, StreakBonusMultiplier: 1.1},
		{SecondsPerCoin: 600, DailyCoinLimit: 80, StreakBonusThreshold: -1, StreakBonusMultiplier: 1.1},
		{SecondsPerCoin: 600, DailyCoinLimit: 80, StreakBonusMultiplier: 0.9},
		// точнее тысячных бонус не считается
		{SecondsPerCoin: 600, DailyCoinLimit: 80, StreakBonusMultiplier: 1.0005},
		{SecondsPerCoin: 600, DailyCoinLimit: 80, StreakBonusMultiplier: 1.0004},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
	if got := DefaultPolicy().CoinsPerSecond(); got != 1.0/600 {
		t.Fatalf("CoinsPerSecond = %v", got)
	}
}

func TestApplyBonusThousandths(t *testing.T) {
	tests := []struct {
		multiplier float64
		coins      int64
		want       int64
	}{
		{1.1, 10, 11},
		{1.1, 80, 88},
		{1.25, 10, 12},
		{1.001, 1000, 1001},
		{1.001, 999, 999},
		{2, 7, 14},
		{1, 50, 50},
	}
	for _, tt := range tests {
		p := DefaultPolicy()
		p.StreakBonusMultiplier = tt.multiplier
		if err := p.Validate(); err != nil {
			t.Fatalf("multiplier %v: %v", tt.multiplier, err)
		}
		if got := p.applyBonus(tt.coins, true); got != tt.want {
			t.Errorf("floor(%d × %v) = %d, want %d", tt.coins, tt.multiplier, got, tt.want)
		}
		if got := p.applyBonus(tt.coins, false); got != tt.coins {
			t.Errorf("inactive bonus changed %d to %d", tt.coins, got)
		}
	}
}
