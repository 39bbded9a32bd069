package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/fit9to5/billing-api/internal/pkg/env"
)

// Options returns the connection settings for the status cache.
func Options() *redis.Options {
	return &redis.Options{
		Addr:        net.JoinHostPort(env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password:    env.GetEnv("CACHE_PASSWORD", ""),
		DB:          0,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	}
}

// SetupCache initializes the Redis client. The cache is optional: when
// CACHE_HOST is empty no client is created and callers fall back to MySQL.
func SetupCache() *redis.Client {
	if env.GetEnv("CACHE_HOST", "") == "" {
		log.Info("Cache disabled: CACHE_HOST is not set")
		return nil
	}

	client := redis.NewClient(Options())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("Could not connect to cache: %v", err)
	} else {
		log.Infof("Successfully connected to cache: %s", pong)
	}
	return client
}

// StatusKey is the cache key holding a subject's subscription status.
func StatusKey(subject string) string {
	return fmt.Sprintf("billing:status:%s", subject)
}

// StatusGenerationKey is bumped on every status write. Cache fills watch it.
func StatusGenerationKey(subject string) string {
	return fmt.Sprintf("billing:status-gen:%s", subject)
}
