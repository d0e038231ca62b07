// Package api: HTTP API для веб- и мобильного клиента Учебного сада.
// Все ответы имеют вид {code, message, data}; code = 0 означает успех.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/common"
)

// JSONResponse: единый формат ответа API.
type JSONResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Коды ошибок API. Первые три цифры совпадают с HTTP-статусом.
const (
	CodeOK                  = 0
	CodeBadRequest          = 40001
	CodeInvalidInterval     = 40002
	CodeInvalidAmount       = 40003
	CodeInvalidDuration     = 40004
	CodeUnauthorized        = 40101
	CodeNotFound            = 40401
	CodeNoActiveSession     = 40402
	CodeInsufficientBalance = 40901
	CodeDailyLimitReached   = 40902
	CodeAlreadyAwarded      = 40903
	CodeSessionConflict     = 40904
	CodeSessionIncomplete   = 40905
	CodeBusy                = 40906
	CodeRateLimited         = 42901
	CodeInternal            = 50001
)

// Respond пишет JSON-ответ с указанным статусом.
func Respond(c *gin.Context, status, code int, message string, data any) {
	c.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success: стандартный успешный ответ.
func Success(c *gin.Context, data any) {
	Respond(c, http.StatusOK, CodeOK, "success", data)
}

// Error: стандартный ответ с ошибкой.
func Error(c *gin.Context, status, code int, message string) {
	Respond(c, status, code, message, nil)
}

// statusFor сопоставляет доменную ошибку со статусом и кодом API.
// Порядок важен: ErrInvalidAmount оборачивает ErrInsufficientBalance.
func statusFor(err error) (int, int) {
	switch {
	case errors.Is(err, common.ErrInvalidInterval):
		return http.StatusBadRequest, CodeInvalidInterval
	case errors.Is(err, common.ErrInvalidAmount):
		return http.StatusBadRequest, CodeInvalidAmount
	case errors.Is(err, common.ErrInvalidDuration):
		return http.StatusBadRequest, CodeInvalidDuration
	case errors.Is(err, common.ErrDailyLimitReached):
		return http.StatusConflict, CodeDailyLimitReached
	case errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusConflict, CodeInsufficientBalance
	case errors.Is(err, common.ErrSessionAlreadyAwarded):
		return http.StatusConflict, CodeAlreadyAwarded
	case errors.Is(err, common.ErrSessionActive),
		errors.Is(err, common.ErrSessionPaused),
		errors.Is(err, common.ErrSessionRunning):
		return http.StatusConflict, CodeSessionConflict
	case errors.Is(err, common.ErrSessionIncomplete):
		return http.StatusConflict, CodeSessionIncomplete
	case errors.Is(err, common.ErrLockTimeout):
		return http.StatusConflict, CodeBusy
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, common.ErrNoActiveSession):
		return http.StatusNotFound, CodeNoActiveSession
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Fail переводит ошибку сервиса в ответ API. Внутренние ошибки логируются,
// а клиенту уходит общее сообщение.
func Fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Ошибка обработки запроса")
		Error(c, status, code, "внутренняя ошибка сервера")
		return
	}
	Error(c, status, code, err.Error())
}
