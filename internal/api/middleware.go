package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/ratelimit"
)

// RequestLogger пишет каждый запрос в logrus.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP запрос")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP запрос")
		default:
			entry.Debug("HTTP запрос")
		}
	}
}

// Recovery гасит панику обработчика и отвечает 500 в формате API.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", recovered),
			"path":      c.Request.URL.Path,
		}).Error("ПАНИКА в HTTP обработчике, восстановлено")
		Error(c, http.StatusInternalServerError, CodeInternal, "внутренняя ошибка сервера")
		c.Abort()
	})
}

// BearerAuth проверяет статический токен в заголовке Authorization.
// Пустой token отключает проверку.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			Error(c, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit ограничивает частоту запросов с одного IP.
func RateLimit(limiter *ratelimit.Limiter[string]) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			Error(c, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
