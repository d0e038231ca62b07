// Package cache подключает Redis: в нём живут активные таймеры и межпроцессные блокировки.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"studygarden.ru/backend/internal/config"
)

// NewRedis создаёт клиент Redis и проверяет соединение.
// Если REDIS_ADDR не задан, возвращает nil без ошибки: вызывающий переходит на in-memory.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis недоступен (%s): %w", cfg.RedisAddr, err)
	}

	log.WithFields(log.Fields{
		"addr":   cfg.RedisAddr,
		"db":     cfg.RedisDB,
		"prefix": cfg.RedisPrefix,
	}).Info("Подключение к Redis установлено")
	return client, nil
}
