package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RedisClient *redis.Client

// redisOptions accepts a redis:// or rediss:// URL, or a bare host:port as
// older deployments set REDIS_URI.
func redisOptions(uri string) (*redis.Options, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("redis: empty address")
	}

	var opt *redis.Options
	if strings.Contains(uri, "://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: uri}
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	return opt, nil
}

// ConnectRedis connects to Redis, which backs sessions, rate limits and the lead feed.
// RedisClient is only set once the server answers a ping.
func ConnectRedis(redisURI string) error {
	opt, err := redisOptions(redisURI)
	if err != nil {
		return err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}

	RedisClient = client
	zap.L().Info("✅ Connected to Redis", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return nil
}

func DisconnectRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
