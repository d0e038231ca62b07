// Package app инициализирует все компоненты приложения.
// app.go собирает приложение: создаёт БД-пул, Redis, репозитории, сервисы,
// обработчики и запускает бота, HTTP API и планировщик.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"studygarden.ru/backend/internal/api"
	"studygarden.ru/backend/internal/bot"
	"studygarden.ru/backend/internal/bot/filters"
	"studygarden.ru/backend/internal/cache"
	"studygarden.ru/backend/internal/config"
	"studygarden.ru/backend/internal/db/postgres"
	"studygarden.ru/backend/internal/features/admin"
	"studygarden.ru/backend/internal/features/members"
	"studygarden.ru/backend/internal/features/session"
	"studygarden.ru/backend/internal/features/streak"
	"studygarden.ru/backend/internal/features/wallet"
	"studygarden.ru/backend/internal/jobs"
	"studygarden.ru/backend/internal/locker"
)

// Время жизни распределённой блокировки пользователя
const lockTTL = 15 * time.Second

// App содержит все компоненты приложения.
type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client // nil: in-memory режим
	Bot       *bot.Bot      // nil: токен не задан
	API       *api.Server   // nil: HTTP_ENABLED=false
	Scheduler *jobs.Scheduler
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", cfg.AppTimezone, err)
	}

	// === 1. База данных ===
	pool, err := Migrate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Redis (или in-memory) ===
	rdb, err := cache.NewRedis(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var (
		lk    locker.Locker
		store session.Store
	)
	if rdb != nil {
		lk = locker.NewRedisLocker(rdb, cfg.RedisPrefix, lockTTL)
		store = session.NewRedisStore(rdb, cfg.RedisPrefix)
	} else {
		log.Warn("REDIS_ADDR не задан: таймеры и блокировки хранятся в памяти процесса")
		lk = locker.NewLocalLocker()
		store = session.NewMemoryStore()
	}

	// === 3. Репозитории и сервисы ===
	memberService := members.NewService(members.NewRepository(pool))
	walletService := wallet.NewService(wallet.NewRepository(pool), cfg.Policy(), lk, loc)
	sessionService := session.NewService(store, walletService, lk, cfg.TimerMinDuration, cfg.TimerMaxDuration)
	streakService := streak.NewService(
		streak.NewRepository(pool), cfg.Policy(), loc,
		cfg.StreakReminderThreshold, cfg.StreakInactiveFor(),
	)
	adminService := admin.NewService(admin.NewRepository(pool), memberService, walletService, cfg.AdminIDs, cfg.AdminPasswordHash)

	a := &App{Config: cfg, DB: pool, Redis: rdb}

	// === 4. Telegram ===
	var send jobs.SendFunc
	if cfg.BotEnabled() {
		botAPI, err := bot.NewAPI(cfg.TelegramBotToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Bot = newBot(botAPI, cfg, loc, memberService, walletService, sessionService, streakService, adminService)
		send = a.Bot.SendMessageToUser
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN не задан: бот выключен, работает только HTTP API")
	}

	// === 5. HTTP API ===
	if cfg.HTTPEnabled {
		h := api.NewHandler(walletService, streakService, sessionService)
		a.API = api.NewServer(cfg, h, a.ping)
	}

	// === 6. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(loc, walletService, streakService, sessionService, send)

	return a, nil
}

// newBot собирает обработчики и фильтры Telegram.
func newBot(
	botAPI *telego.Bot,
	cfg *config.Config,
	loc *time.Location,
	memberService *members.Service,
	walletService *wallet.Service,
	sessionService *session.Service,
	streakService *streak.Service,
	adminService *admin.Service,
) *bot.Bot {
	// Новый участник учебного чата сразу получает пустой кошелёк
	memberHandler := members.NewHandler(memberService, walletService.EnsureWallet)

	return bot.New(
		botAPI, cfg,
		memberService, memberHandler,
		wallet.NewHandler(walletService, botAPI),
		session.NewHandler(sessionService, botAPI, cfg.TimerPresets, loc),
		streak.NewHandler(streakService, botAPI),
		adminService, admin.NewHandler(adminService, botAPI),
		filters.NewChatFilter(cfg.StudyChatID),
	)
}

// Migrate подключается к БД и применяет миграции.
func Migrate(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	applied, err := postgres.RunMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	log.WithField("applied", applied).Info("Миграции проверены")
	return pool, nil
}

// Run запускает бота, API и планировщик и блокируется до отмены ctx.
// Ошибка любого компонента останавливает остальные.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска планировщика: %w", err)
	}
	defer a.Scheduler.Stop()

	if a.Bot != nil {
		g.Go(func() error { return a.Bot.Start(ctx) })
	}
	if a.API != nil {
		g.Go(func() error { return a.API.Run(ctx) })
	}
	if a.Bot == nil && a.API == nil {
		log.Warn("Бот и HTTP API выключены: работает только планировщик")
	}

	log.Info("=== Учебный сад готов к работе ===")
	<-ctx.Done()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close освобождает соединения.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}

// ping: проверка зависимостей для /healthz.
func (a *App) ping(ctx context.Context) error {
	if err := a.DB.Ping(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		return a.Redis.Ping(ctx).Err()
	}
	return nil
}
