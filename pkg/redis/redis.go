package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/shopcore-backend/config"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout  = 5 * time.Second
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

// Connect opens a client for cfg and checks it with PING. The caller owns
// the client and closes it on shutdown.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr(), err)
	}

	logger.Info("Redis connected", map[string]interface{}{
		"addr": cfg.Addr(),
		"db":   cfg.DB,
	})
	return c, nil
}
