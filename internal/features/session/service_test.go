package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/wallet"
	"studygarden.ru/backend/internal/locker"
)

type awardCall struct {
	userID     int64
	sessionID  uuid.UUID
	start, end time.Time
}

// fakeAwarder запоминает вызовы и отвечает заданной ошибкой.
type fakeAwarder struct {
	mu    sync.Mutex
	calls []awardCall
	err   error
}

func (f *fakeAwarder) AwardSession(_ context.Context, userID int64, sessionID uuid.UUID, start, end time.Time) (*wallet.Award, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, awardCall{userID, sessionID, start, end})
	if f.err != nil {
		return nil, f.err
	}
	coins := int64(end.Sub(start) / (10 * time.Minute))
	return &wallet.Award{SessionID: sessionID, Duration: end.Sub(start), CoinsAwarded: coins, Balance: coins}, nil
}

func (f *fakeAwarder) Estimate(_ context.Context, _ int64, d time.Duration) (int64, error) {
	return int64(d / (10 * time.Minute)), nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestService() (*Service, *MemoryStore, *fakeAwarder, *clock) {
	store := NewMemoryStore()
	aw := &fakeAwarder{}
	clk := &clock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewService(store, aw, locker.NewLocalLocker(), 5*time.Minute, 3*time.Hour)
	svc.now = clk.now
	return svc, store, aw, clk
}

func TestStartValidatesDuration(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for _, d := range []time.Duration{0, time.Minute, 4 * time.Hour} {
		if _, err := svc.Start(ctx, 1, 1, d); !errors.Is(err, common.ErrInvalidDuration) {
			t.Errorf("Start(%v): expected ErrInvalidDuration, got %v", d, err)
		}
	}

	if _, err := svc.Start(ctx, 1, 1, 25*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(ctx, 1, 1, 45*time.Minute); !errors.Is(err, common.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStopEarlyAwardsNothing(t *testing.T) {
	svc, store, aw, clk := newTestService()
	ctx := context.Background()

	if _, err := svc.Start(ctx, 1, 1, 25*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.advance(24 * time.Minute)

	if _, err := svc.Stop(ctx, 1); !errors.Is(err, common.ErrSessionIncomplete) {
		t.Fatalf("expected ErrSessionIncomplete, got %v", err)
	}
	if len(aw.calls) != 0 {
		t.Fatal("early stop must not award")
	}
	if _, err := store.Get(ctx, 1); !errors.Is(err, common.ErrNoActiveSession) {
		t.Fatal("timer must be removed after early stop")
	}
	if _, err := svc.Stop(ctx, 1); !errors.Is(err, common.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestStopAfterTargetAwardsTargetInterval(t *testing.T) {
	svc, _, aw, clk := newTestService()
	ctx := context.Background()

	sess, err := svc.Start(ctx, 1, 1, 25*time.Minute)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	startedAt := clk.t
	clk.advance(40 * time.Minute)

	c, err := svc.Stop(ctx, 1)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Award == nil || c.Award.CoinsAwarded != 2 {
		t.Fatalf("unexpected completion %+v", c)
	}

	call := aw.calls[0]
	if call.sessionID != sess.ID {
		t.Fatal("award must use the timer id as idempotency key")
	}
	if !call.start.Equal(startedAt) || !call.end.Equal(startedAt.Add(25*time.Minute)) {
		t.Fatalf("interval = [%v, %v]", call.start, call.end)
	}
}

func TestPauseExcludesPausedTime(t *testing.T) {
	svc, _, aw, clk := newTestService()
	ctx := context.Background()

	if _, err := svc.Start(ctx, 1, 1, 25*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.advance(10 * time.Minute)
	if _, err := svc.Pause(ctx, 1); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := svc.Pause(ctx, 1); !errors.Is(err, common.ErrSessionPaused) {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}

	clk.advance(time.Hour) // пауза не считается
	st, err := svc.Status(ctx, 1)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Paused || st.ElapsedSeconds != 600 || st.RemainingSeconds != 900 || st.EstimatedCoins != 2 {
		t.Fatalf("unexpected status %+v", st)
	}

	if _, err := svc.Resume(ctx, 1); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := svc.Resume(ctx, 1); !errors.Is(err, common.ErrSessionRunning) {
		t.Fatalf("expected ErrSessionRunning, got %v", err)
	}
	resumedAt := clk.t
	clk.advance(15 * time.Minute)

	c, err := svc.Stop(ctx, 1)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Award == nil {
		t.Fatal("expected award")
	}
	call := aw.calls[0]
	if got := call.end.Sub(call.start); got != 25*time.Minute {
		t.Fatalf("awarded %v, want 25m", got)
	}
	if !call.end.Equal(resumedAt.Add(15 * time.Minute)) {
		t.Fatalf("end = %v", call.end)
	}
}

func TestCompleteDue(t *testing.T) {
	svc, store, aw, clk := newTestService()
	ctx := context.Background()

	if _, err := svc.Start(ctx, 1, 100, 25*time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(ctx, 2, 200, time.Hour); err != nil {
		t.Fatal(err)
	}
	clk.advance(26 * time.Minute)

	done, err := svc.CompleteDue(ctx)
	if err != nil {
		t.Fatalf("CompleteDue: %v", err)
	}
	if len(done) != 1 || done[0].Session.UserID != 1 || done[0].Session.ChatID != 100 {
		t.Fatalf("unexpected completions %+v", done)
	}
	if len(aw.calls) != 1 {
		t.Fatalf("expected 1 award, got %d", len(aw.calls))
	}
	if _, err := store.Get(ctx, 2); err != nil {
		t.Fatal("unfinished timer must stay")
	}

	// Повторный проход ничего не делает.
	done, _ = svc.CompleteDue(ctx)
	if len(done) != 0 {
		t.Fatalf("expected no completions, got %d", len(done))
	}
}

func TestCompleteHandlesAwardOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantErr     bool
		wantLimit   bool
		wantRemoved bool
	}{
		{"daily limit", common.ErrDailyLimitReached, false, true, true},
		{"already awarded", common.ErrSessionAlreadyAwarded, false, false, true},
		{"storage failure", errors.New("db down"), true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, aw, clk := newTestService()
			ctx := context.Background()
			aw.err = tt.err

			if _, err := svc.Start(ctx, 1, 1, 25*time.Minute); err != nil {
				t.Fatal(err)
			}
			clk.advance(30 * time.Minute)

			c, err := svc.Stop(ctx, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Stop error = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil && c.LimitReached != tt.wantLimit {
				t.Fatalf("LimitReached = %v", c.LimitReached)
			}
			_, getErr := store.Get(ctx, 1)
			if removed := errors.Is(getErr, common.ErrNoActiveSession); removed != tt.wantRemoved {
				t.Fatalf("removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}
