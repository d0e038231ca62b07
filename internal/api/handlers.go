package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studygarden.ru/backend/internal/features/reward"
	"studygarden.ru/backend/internal/features/session"
	"studygarden.ru/backend/internal/features/streak"
	"studygarden.ru/backend/internal/features/wallet"
)

// WalletService: операции кошелька, доступные через API.
type WalletService interface {
	Stats(ctx context.Context, userID int64) (reward.Summary, error)
	Estimate(ctx context.Context, userID int64, d time.Duration) (int64, error)
	AwardSession(ctx context.Context, userID int64, sessionID uuid.UUID, start, end time.Time) (*wallet.Award, error)
	Spend(ctx context.Context, userID, amount int64, description string) (reward.Wallet, error)
	Records(ctx context.Context, userID int64, limit int) ([]reward.StudyRecord, error)
	Transactions(ctx context.Context, userID int64, limit int) ([]wallet.Transaction, error)
}

// StreakService: экран серии.
type StreakService interface {
	GetStreak(ctx context.Context, userID int64) (streak.View, error)
}

// TimerService: учебный таймер.
type TimerService interface {
	Start(ctx context.Context, userID, chatID int64, target time.Duration) (*session.ActiveSession, error)
	Pause(ctx context.Context, userID int64) (*session.ActiveSession, error)
	Resume(ctx context.Context, userID int64) (*session.ActiveSession, error)
	Status(ctx context.Context, userID int64) (*session.Status, error)
	Stop(ctx context.Context, userID int64) (*session.Completion, error)
}

// Больше секунд time.Duration не вмещает
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Handler обслуживает маршруты /api/v1/users/:userID/...
type Handler struct {
	wallets WalletService
	streaks StreakService
	timers  TimerService
}

// NewHandler создаёт обработчик HTTP API.
func NewHandler(wallets WalletService, streaks StreakService, timers TimerService) *Handler {
	return &Handler{wallets: wallets, streaks: streaks, timers: timers}
}

// --- DTO ---

type awardRequest struct {
	SessionID string    `json:"sessionId"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
}

type awardResponse struct {
	SessionID       uuid.UUID `json:"sessionId"`
	DurationSeconds int64     `json:"durationSeconds"`
	BaseCoins       int64     `json:"baseCoins"`
	CappedCoins     int64     `json:"cappedCoins"`
	CoinsAwarded    int64     `json:"coinsAwarded"`
	BonusApplied    bool      `json:"bonusApplied"`
	Balance         int64     `json:"balance"`
	DailyEarned     int64     `json:"dailyEarned"`
	CurrentStreak   int       `json:"currentStreak"`
}

func newAwardResponse(a *wallet.Award) *awardResponse {
	if a == nil {
		return nil
	}
	return &awardResponse{
		SessionID:       a.SessionID,
		DurationSeconds: int64(a.Duration / time.Second),
		BaseCoins:       a.BaseCoins,
		CappedCoins:     a.CappedCoins,
		CoinsAwarded:    a.CoinsAwarded,
		BonusApplied:    a.BonusApplied,
		Balance:         a.Balance,
		DailyEarned:     a.DailyEarned,
		CurrentStreak:   a.Streak,
	}
}

type spendRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type recordResponse struct {
	ID              uuid.UUID `json:"id"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int64     `json:"durationSeconds"`
	CoinsEarned     int64     `json:"coinsEarned"`
	Timestamp       time.Time `json:"timestamp"`
}

type timerStartRequest struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type completionResponse struct {
	SessionID     uuid.UUID      `json:"sessionId"`
	TargetSeconds int64          `json:"targetSeconds"`
	Award         *awardResponse `json:"award,omitempty"`
	LimitReached  bool           `json:"limitReached"`
}

// --- Кошелёк ---

// GetWallet: GET /wallet
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	sum, err := h.wallets.Stats(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, sum)
}

// GetStreak: GET /streak
func (h *Handler) GetStreak(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	v, err := h.streaks.GetStreak(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, v)
}

// GetEstimate: GET /estimate?seconds=1500
func (h *Handler) GetEstimate(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	seconds, err := strconv.ParseInt(c.Query("seconds"), 10, 64)
	if err != nil || seconds < 0 || seconds > maxDurationSeconds {
		Error(c, http.StatusBadRequest, CodeBadRequest, "seconds должен быть неотрицательным числом в пределах time.Duration")
		return
	}

	coins, err := h.wallets.Estimate(c.Request.Context(), userID, time.Duration(seconds)*time.Second)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"seconds": seconds, "coins": coins})
}

// PostAward (POST /awards): начисление за сессию, пройденную на клиенте.
// Повтор с тем же sessionId вернёт 409 и ничего не изменит.
func (h *Handler) PostAward(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "некорректное тело запроса: "+err.Error())
		return
	}

	sessionID := uuid.Nil
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			Error(c, http.StatusBadRequest, CodeBadRequest, "некорректный sessionId")
			return
		}
		sessionID = id
	}

	award, err := h.wallets.AwardSession(c.Request.Context(), userID, sessionID, req.StartTime, req.EndTime)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, newAwardResponse(award))
}

// PostSpend: POST /spend
func (h *Handler) PostSpend(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "некорректное тело запроса: "+err.Error())
		return
	}

	w, err := h.wallets.Spend(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"balance": w.Balance, "spent": req.Amount})
}

// GetRecords: GET /records?limit=10
func (h *Handler) GetRecords(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	records, err := h.wallets.Records(c.Request.Context(), userID, limitQuery(c))
	if err != nil {
		Fail(c, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{
			ID:              r.ID,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			DurationSeconds: int64(r.Duration / time.Second),
			CoinsEarned:     r.CoinsEarned,
			Timestamp:       r.CreatedAt,
		})
	}
	Success(c, out)
}

// GetTransactions: GET /transactions?limit=10
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	txs, err := h.wallets.Transactions(c.Request.Context(), userID, limitQuery(c))
	if err != nil {
		Fail(c, err)
		return
	}
	if txs == nil {
		txs = []wallet.Transaction{}
	}
	Success(c, txs)
}

// --- Таймер ---

// GetTimer: GET /timer
func (h *Handler) GetTimer(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	st, err := h.timers.Status(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, st)
}

// StartTimer: POST /timer/start {"minutes": 25}
func (h *Handler) StartTimer(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req timerStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "некорректное тело запроса: "+err.Error())
		return
	}
	if req.Minutes < 0 || req.Seconds < 0 ||
		int64(req.Minutes) > maxDurationSeconds/60 || int64(req.Seconds) > maxDurationSeconds-int64(req.Minutes)*60 {
		Error(c, http.StatusBadRequest, CodeBadRequest, "некорректная длительность таймера")
		return
	}
	target := time.Duration(req.Minutes)*time.Minute + time.Duration(req.Seconds)*time.Second

	// chatID = 0: о завершении клиент узнаёт сам, в Telegram не пишем
	if _, err := h.timers.Start(c.Request.Context(), userID, 0, target); err != nil {
		Fail(c, err)
		return
	}
	st, err := h.timers.Status(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, st)
}

// PauseTimer: POST /timer/pause
func (h *Handler) PauseTimer(c *gin.Context) {
	h.timerTransition(c, h.timers.Pause)
}

// ResumeTimer: POST /timer/resume
func (h *Handler) ResumeTimer(c *gin.Context) {
	h.timerTransition(c, h.timers.Resume)
}

func (h *Handler) timerTransition(c *gin.Context, fn func(context.Context, int64) (*session.ActiveSession, error)) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	if _, err := fn(c.Request.Context(), userID); err != nil {
		Fail(c, err)
		return
	}
	st, err := h.timers.Status(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, st)
}

// StopTimer: POST /timer/stop
// Досрочная остановка: 409 с кодом CodeSessionIncomplete, таймер удалён.
func (h *Handler) StopTimer(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	done, err := h.timers.Stop(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, completionResponse{
		SessionID:     done.Session.ID,
		TargetSeconds: int64(done.Session.Target / time.Second),
		Award:         newAwardResponse(done.Award),
		LimitReached:  done.LimitReached,
	})
}

// --- Параметры ---

func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil || userID <= 0 {
		Error(c, http.StatusBadRequest, CodeBadRequest, "некорректный userID")
		return 0, false
	}
	return userID, true
}

// limitQuery читает ?limit=; границы применяет сервис.
func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		return 10
	}
	return limit
}

// Health: GET /healthz
func Health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				Respond(c, http.StatusServiceUnavailable, CodeInternal, "unavailable", gin.H{"status": "down"})
				return
			}
		}
		Success(c, gin.H{"status": "ok"})
	}
}
