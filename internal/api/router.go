package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/config"
	"studygarden.ru/backend/internal/ratelimit"
)

// RouterOptions: настройки HTTP-слоя.
type RouterOptions struct {
	Env         string
	Token       string
	CORSOrigins []string
	Limiter     *ratelimit.Limiter[string] // nil: без ограничения
	Ping        func(ctx context.Context) error
}

// NewRouter собирает gin.Engine со всеми маршрутами и middleware.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	switch strings.ToLower(opts.Env) {
	case "development", "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(Recovery(), RequestLogger())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 || (len(opts.CORSOrigins) == 1 && opts.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", Health(opts.Ping))

	api := r.Group("/api/v1")
	if opts.Limiter != nil {
		api.Use(RateLimit(opts.Limiter))
	}
	api.Use(BearerAuth(opts.Token))

	users := api.Group("/users/:userID")
	users.GET("/wallet", h.GetWallet)
	users.GET("/streak", h.GetStreak)
	users.GET("/estimate", h.GetEstimate)
	users.POST("/awards", h.PostAward)
	users.POST("/spend", h.PostSpend)
	users.GET("/records", h.GetRecords)
	users.GET("/transactions", h.GetTransactions)

	users.GET("/timer", h.GetTimer)
	users.POST("/timer/start", h.StartTimer)
	users.POST("/timer/pause", h.PauseTimer)
	users.POST("/timer/resume", h.ResumeTimer)
	users.POST("/timer/stop", h.StopTimer)

	r.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, CodeNotFound, "not found")
	})

	return r
}

// Server: HTTP-сервер API с корректной остановкой.
type Server struct {
	srv     *http.Server
	limiter *ratelimit.Limiter[string]
	grace   time.Duration
}

// NewServer создаёт сервер по конфигу. ping проверяет зависимости для /healthz.
func NewServer(cfg *config.Config, h *Handler, ping func(ctx context.Context) error) *Server {
	limiter := ratelimit.New[string](cfg.HTTPRateLimit, cfg.HTTPRateWindow)
	router := NewRouter(h, RouterOptions{
		Env:         cfg.AppEnv,
		Token:       cfg.HTTPAPIToken,
		CORSOrigins: cfg.HTTPCORSOrigins,
		Limiter:     limiter,
		Ping:        ping,
	})

	return &Server{
		srv: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		limiter: limiter,
		grace:   cfg.HTTPShutdownGrace,
	}
}

// Run слушает адрес до отмены ctx, затем даёт запросам grace на завершение.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Close()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.srv.Addr).Info("HTTP API запущен")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ошибка HTTP сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
	}
	log.Info("HTTP API остановлен")
	return nil
}
