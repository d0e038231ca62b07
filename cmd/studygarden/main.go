// Package main: точка входа бэкенда «Учебный сад».
// Команды: serve (бот + HTTP API + планировщик), migrate, estimate, hash-password.
// serve корректно останавливается по SIGINT/SIGTERM.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"studygarden.ru/backend/internal/app"
	"studygarden.ru/backend/internal/common"
	"studygarden.ru/backend/internal/config"
	"studygarden.ru/backend/internal/features/admin"
	"studygarden.ru/backend/internal/features/reward"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studygarden",
		Short:         "Учебный сад: таймер учёбы, монеты и серии",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newEstimateCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

// loadConfig читает конфигурацию и настраивает логирование по ней.
func loadConfig() (*config.Config, error) {
	setupLogging(nil)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить бота, HTTP API и фоновые задачи",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log.Info("=== Учебный сад запускается ===")

			// Контекст отменяется по Ctrl+C и docker stop
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("не удалось инициализировать приложение: %w", err)
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil {
				return err
			}
			log.Info("=== Учебный сад остановлен ===")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД и выйти",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := app.Migrate(ctx, cfg)
			if err != nil {
				return err
			}
			pool.Close()
			return nil
		},
	}
}

func newEstimateCmd() *cobra.Command {
	var (
		streak      int
		earnedToday int64
	)

	cmd := &cobra.Command{
		Use:   "estimate <minutes>",
		Short: "Посчитать монеты за сессию без обращения к БД",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("ожидалось положительное число минут, получено %q", args[0])
			}
			minutes := time.Duration(n) * time.Minute

			// Политика из окружения, если оно полное, иначе значения по умолчанию
			policy := reward.DefaultPolicy()
			if cfg, err := config.Load(); err == nil {
				policy = cfg.Policy()
			}

			today := time.Now()
			coins := policy.EstimateCoins(
				minutes,
				reward.Wallet{DailyEarned: earnedToday, LastResetDate: today},
				reward.StreakRecord{CurrentStreak: streak},
				today,
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s → %s (серия %d, сегодня уже %d/%d)\n",
				minutes, common.FormatBalance(coins), streak, earnedToday, policy.DailyCoinLimit)
			return err
		},
	}
	cmd.Flags().IntVar(&streak, "streak", 0, "текущая серия дней")
	cmd.Flags().Int64Var(&earnedToday, "earned-today", 0, "монет уже заработано сегодня")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Сгенерировать ADMIN_PASSWORD_HASH (Argon2id)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				// Без аргумента читаем из stdin, чтобы пароль не попал в историю shell
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				password = strings.TrimSpace(line)
			}

			hash, err := admin.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ADMIN_PASSWORD_HASH=%s\n", hash)
			return err
		},
	}
}

// setupLogging настраивает формат логов. cfg == nil: дефолты до загрузки конфига.
func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	if cfg == nil {
		return
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	// Файл с ротацией дублирует stdout
	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}))
	}
}
