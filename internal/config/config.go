// Package config загружает конфигурацию бэкенда из переменных окружения.
// Все значения читаются через envconfig, затем проверяются Validate.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"studygarden.ru/backend/internal/features/reward"
)

// Config: настройки бота, HTTP API, БД, Redis и политики начисления.
type Config struct {
	// --- Telegram ---
	// Пустой токен: бот не запускается, работает только HTTP API.
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполняется в Load
	// Групповой чат учёбы. 0: бот отвечает только в личке.
	StudyChatID int64 `envconfig:"STUDY_CHAT_ID" default:"0"`

	// --- Database ---
	// По умолчанию хост "postgres" из docker-compose; локально DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"studygarden"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"studygarden"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis ---
	// Пустой адрес: таймеры и блокировки живут в памяти процесса.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"studygarden:"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Logging ---
	// Пустой LOG_FILE: только stdout.
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`

	// --- Bot runtime ---
	// Верхняя граница одновременно обрабатываемых апдейтов
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Секунды ожидания в getUpdates
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Reward ---
	RewardSecondsPerCoin        int64   `envconfig:"REWARD_SECONDS_PER_COIN" default:"600"`
	RewardDailyCoinLimit        int64   `envconfig:"REWARD_DAILY_COIN_LIMIT" default:"80"`
	RewardStreakBonusThreshold  int     `envconfig:"REWARD_STREAK_BONUS_THRESHOLD" default:"7"`
	RewardStreakBonusMultiplier float64 `envconfig:"REWARD_STREAK_BONUS_MULTIPLIER" default:"1.1"`

	// --- Timer ---
	TimerPresets     []int         `envconfig:"TIMER_PRESETS" default:"25,45,60"`
	TimerMinDuration time.Duration `envconfig:"TIMER_MIN_DURATION" default:"5m"`
	TimerMaxDuration time.Duration `envconfig:"TIMER_MAX_DURATION" default:"4h"`

	// --- Streak ---
	StreakReminderThreshold int `envconfig:"STREAK_REMINDER_THRESHOLD" default:"3"`
	StreakInactiveHours     int `envconfig:"STREAK_INACTIVE_HOURS" default:"10"`

	// --- Rate Limiting (бот) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- HTTP API ---
	HTTPEnabled       bool          `envconfig:"HTTP_ENABLED" default:"true"`
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPAPIToken      string        `envconfig:"HTTP_API_TOKEN"` // Пустой: без авторизации
	HTTPCORSOrigins   []string      `envconfig:"HTTP_CORS_ORIGINS" default:"*"`
	HTTPRateLimit     int           `envconfig:"HTTP_RATE_LIMIT" default:"120"`
	HTTPRateWindow    time.Duration `envconfig:"HTTP_RATE_WINDOW" default:"1m"`
	HTTPShutdownGrace time.Duration `envconfig:"HTTP_SHUTDOWN_GRACE" default:"10s"`
}

// DatabaseDSN собирает URL подключения для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Policy собирает правила начисления из REWARD_*.
func (c *Config) Policy() reward.Policy {
	return reward.Policy{
		SecondsPerCoin:        c.RewardSecondsPerCoin,
		DailyCoinLimit:        c.RewardDailyCoinLimit,
		StreakBonusThreshold:  c.RewardStreakBonusThreshold,
		StreakBonusMultiplier: c.RewardStreakBonusMultiplier,
	}
}

// BotEnabled: задан ли токен Telegram.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// RedisEnabled: задан ли адрес Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// StreakInactiveFor: сколько часов без учёбы нужно для напоминания.
func (c *Config) StreakInactiveFor() time.Duration {
	return time.Duration(c.StreakInactiveHours) * time.Hour
}

func (c *Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("некорректные REWARD_*: %w", err)
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.TimerMinDuration <= 0 || c.TimerMaxDuration < c.TimerMinDuration {
		return fmt.Errorf("некорректные TIMER_MIN_DURATION/TIMER_MAX_DURATION")
	}
	for _, p := range c.TimerPresets {
		d := time.Duration(p) * time.Minute
		if d < c.TimerMinDuration || d > c.TimerMaxDuration {
			return fmt.Errorf("TIMER_PRESETS: %d мин. вне диапазона таймера", p)
		}
	}
	if c.StreakReminderThreshold < 1 || c.StreakInactiveHours < 0 {
		return fmt.Errorf("некорректные STREAK_REMINDER_THRESHOLD/STREAK_INACTIVE_HOURS")
	}
	if c.HTTPEnabled && c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR не задан")
	}
	if len(c.AdminIDs) > 0 && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH обязателен, если задан ADMIN_IDS")
	}
	return nil
}

// Load читает окружение, разбирает ADMIN_IDS и проверяет результат.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
