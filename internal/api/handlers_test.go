package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/features/reward"
	"studygarden.ru/backend/internal/features/session"
	"studygarden.ru/backend/internal/features/streak"
	"studygarden.ru/backend/internal/features/wallet"
	"studygarden.ru/backend/internal/ratelimit"
)

type fakeWallets struct {
	balance int64
	awarded map[uuid.UUID]bool
	limit   bool
}

func (f *fakeWallets) Stats(_ context.Context, userID int64) (reward.Summary, error) {
	if userID == 404 {
		return reward.Summary{}, common.ErrUserNotFound
	}
	return reward.Summary{Balance: f.balance, DailyLimit: 80}, nil
}

func (f *fakeWallets) Estimate(_ context.Context, _ int64, d time.Duration) (int64, error) {
	return int64(d / (10 * time.Minute)), nil
}

func (f *fakeWallets) AwardSession(_ context.Context, _ int64, id uuid.UUID, start, end time.Time) (*wallet.Award, error) {
	if end.Before(start) {
		return nil, common.ErrInvalidInterval
	}
	if f.limit {
		return nil, common.ErrDailyLimitReached
	}
	if f.awarded[id] {
		return nil, common.ErrSessionAlreadyAwarded
	}
	f.awarded[id] = true
	coins := int64(end.Sub(start) / (10 * time.Minute))
	f.balance += coins
	return &wallet.Award{SessionID: id, Duration: end.Sub(start), CoinsAwarded: coins, Balance: f.balance}, nil
}

func (f *fakeWallets) Spend(_ context.Context, _ int64, amount int64, _ string) (reward.Wallet, error) {
	if amount <= 0 {
		return reward.Wallet{}, common.ErrInvalidAmount
	}
	if amount > f.balance {
		return reward.Wallet{}, common.ErrInsufficientBalance
	}
	f.balance -= amount
	return reward.Wallet{Balance: f.balance}, nil
}

func (f *fakeWallets) Records(context.Context, int64, int) ([]reward.StudyRecord, error) {
	return []reward.StudyRecord{{ID: uuid.New(), Duration: 25 * time.Minute, CoinsEarned: 2}}, nil
}

func (f *fakeWallets) Transactions(context.Context, int64, int) ([]wallet.Transaction, error) {
	return nil, nil
}

type fakeStreaks struct{}

func (fakeStreaks) GetStreak(context.Context, int64) (streak.View, error) {
	return streak.View{Record: reward.StreakRecord{CurrentStreak: 3}, Alive: true}, nil
}

type fakeTimers struct {
	active bool
}

func (f *fakeTimers) Start(_ context.Context, userID, _ int64, target time.Duration) (*session.ActiveSession, error) {
	if target <= 0 {
		return nil, common.ErrInvalidDuration
	}
	if f.active {
		return nil, common.ErrSessionActive
	}
	f.active = true
	return &session.ActiveSession{UserID: userID, Target: target}, nil
}

func (f *fakeTimers) Pause(context.Context, int64) (*session.ActiveSession, error) {
	return nil, common.ErrNoActiveSession
}

func (f *fakeTimers) Resume(context.Context, int64) (*session.ActiveSession, error) {
	return nil, common.ErrNoActiveSession
}

func (f *fakeTimers) Status(context.Context, int64) (*session.Status, error) {
	if !f.active {
		return nil, common.ErrNoActiveSession
	}
	return &session.Status{TargetSeconds: 1500, RemainingSeconds: 1500}, nil
}

func (f *fakeTimers) Stop(context.Context, int64) (*session.Completion, error) {
	if !f.active {
		return nil, common.ErrNoActiveSession
	}
	f.active = false
	return nil, common.ErrSessionIncomplete
}

func newTestRouter(t *testing.T, token string) (http.Handler, *fakeWallets) {
	t.Helper()
	w := &fakeWallets{balance: 10, awarded: map[uuid.UUID]bool{}}
	h := NewHandler(w, fakeStreaks{}, &fakeTimers{})
	return NewRouter(h, RouterOptions{Env: "test", Token: token}), w
}

func do(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) (int, JSONResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp JSONResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: bad json %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestRoutes(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sessionID := uuid.New()

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   int
	}{
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK, CodeOK},
		{"wallet", http.MethodGet, "/api/v1/users/1/wallet", nil, http.StatusOK, CodeOK},
		{"wallet of unknown user", http.MethodGet, "/api/v1/users/404/wallet", nil, http.StatusNotFound, CodeNotFound},
		{"bad user id", http.MethodGet, "/api/v1/users/abc/wallet", nil, http.StatusBadRequest, CodeBadRequest},
		{"streak", http.MethodGet, "/api/v1/users/1/streak", nil, http.StatusOK, CodeOK},
		{"estimate", http.MethodGet, "/api/v1/users/1/estimate?seconds=1500", nil, http.StatusOK, CodeOK},
		{"estimate without seconds", http.MethodGet, "/api/v1/users/1/estimate", nil, http.StatusBadRequest, CodeBadRequest},
		{"estimate seconds beyond duration range", http.MethodGet, "/api/v1/users/1/estimate?seconds=9300000000", nil, http.StatusBadRequest, CodeBadRequest},
		{"estimate seconds at duration range", http.MethodGet, "/api/v1/users/1/estimate?seconds=9223372036", nil, http.StatusOK, CodeOK},
		{"award", http.MethodPost, "/api/v1/users/1/awards",
			map[string]any{"sessionId": sessionID.String(), "startTime": start, "endTime": start.Add(25 * time.Minute)},
			http.StatusOK, CodeOK},
		{"award repeated", http.MethodPost, "/api/v1/users/1/awards",
			map[string]any{"sessionId": sessionID.String(), "startTime": start, "endTime": start.Add(25 * time.Minute)},
			http.StatusConflict, CodeAlreadyAwarded},
		{"award inverted interval", http.MethodPost, "/api/v1/users/1/awards",
			map[string]any{"startTime": start, "endTime": start.Add(-time.Minute)},
			http.StatusBadRequest, CodeInvalidInterval},
		{"award bad session id", http.MethodPost, "/api/v1/users/1/awards",
			map[string]any{"sessionId": "nope", "startTime": start, "endTime": start.Add(time.Minute)},
			http.StatusBadRequest, CodeBadRequest},
		{"spend", http.MethodPost, "/api/v1/users/1/spend", map[string]any{"amount": 5}, http.StatusOK, CodeOK},
		{"spend too much", http.MethodPost, "/api/v1/users/1/spend", map[string]any{"amount": 1000}, http.StatusConflict, CodeInsufficientBalance},
		{"spend negative", http.MethodPost, "/api/v1/users/1/spend", map[string]any{"amount": -3}, http.StatusBadRequest, CodeInvalidAmount},
		{"records", http.MethodGet, "/api/v1/users/1/records?limit=5", nil, http.StatusOK, CodeOK},
		{"transactions", http.MethodGet, "/api/v1/users/1/transactions", nil, http.StatusOK, CodeOK},
		{"timer without session", http.MethodGet, "/api/v1/users/1/timer", nil, http.StatusNotFound, CodeNoActiveSession},
		{"timer start overflowing minutes", http.MethodPost, "/api/v1/users/1/timer/start", map[string]any{"minutes": int64(1) << 40}, http.StatusBadRequest, CodeBadRequest},
		{"timer start negative seconds", http.MethodPost, "/api/v1/users/1/timer/start", map[string]any{"minutes": 25, "seconds": -1}, http.StatusBadRequest, CodeBadRequest},
		{"timer start", http.MethodPost, "/api/v1/users/1/timer/start", map[string]any{"minutes": 25}, http.StatusOK, CodeOK},
		{"timer start twice", http.MethodPost, "/api/v1/users/1/timer/start", map[string]any{"minutes": 25}, http.StatusConflict, CodeSessionConflict},
		{"timer status", http.MethodGet, "/api/v1/users/1/timer", nil, http.StatusOK, CodeOK},
		{"timer early stop", http.MethodPost, "/api/v1/users/1/timer/stop", nil, http.StatusConflict, CodeSessionIncomplete},
		{"timer pause without session", http.MethodPost, "/api/v1/users/1/timer/pause", nil, http.StatusNotFound, CodeNoActiveSession},
		{"unknown route", http.MethodGet, "/api/v1/nope", nil, http.StatusNotFound, CodeNotFound},
	}

	// Кейсы идут по порядку и делят состояние фейков
	router, _ := newTestRouter(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := do(t, router, tt.method, tt.path, tt.body, nil)
			if status != tt.wantStatus || resp.Code != tt.wantCode {
				t.Fatalf("got %d/%d (%s), want %d/%d", status, resp.Code, resp.Message, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestDailyLimitIsConflict(t *testing.T) {
	router, w := newTestRouter(t, "")
	w.limit = true

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	status, resp := do(t, router, http.MethodPost, "/api/v1/users/1/awards",
		map[string]any{"startTime": start, "endTime": start.Add(time.Hour)}, nil)
	if status != http.StatusConflict || resp.Code != CodeDailyLimitReached {
		t.Fatalf("got %d/%d, want 409/%d", status, resp.Code, CodeDailyLimitReached)
	}
}

func TestBearerAuth(t *testing.T) {
	router, _ := newTestRouter(t, "s3cret")

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"no scheme", map[string]string{"Authorization": "s3cret"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, router, http.MethodGet, "/api/v1/users/1/wallet", nil, tt.header)
			if status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
		})
	}

	// /healthz открыт без токена
	if status, _ := do(t, router, http.MethodGet, "/healthz", nil, nil); status != http.StatusOK {
		t.Fatalf("healthz status = %d", status)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New[string](2, time.Hour)
	defer limiter.Close()

	h := NewHandler(&fakeWallets{awarded: map[uuid.UUID]bool{}}, fakeStreaks{}, &fakeTimers{})
	router := NewRouter(h, RouterOptions{Env: "test", Limiter: limiter})

	for i := 0; i < 2; i++ {
		if status, _ := do(t, router, http.MethodGet, "/api/v1/users/1/wallet", nil, nil); status != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, status)
		}
	}
	status, resp := do(t, router, http.MethodGet, "/api/v1/users/1/wallet", nil, nil)
	if status != http.StatusTooManyRequests || resp.Code != CodeRateLimited {
		t.Fatalf("got %d/%d, want 429/%d", status, resp.Code, CodeRateLimited)
	}
}
