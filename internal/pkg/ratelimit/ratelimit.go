package ratelimit

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fit9to5/billing-api/internal/pkg/env"
)

// storageDatabase keeps limiter counters away from the status cache (DB 0).
const storageDatabase = 1

// Config configures the API rate limiter.
type Config struct {
	Max        int
	Expiration time.Duration
	Storage    fiber.Storage
	// SkipPaths are exempt, e.g. processor webhooks that arrive in bursts.
	SkipPaths []string
}

// NewStorage returns a Redis backed limiter storage sharing the cache
// connection settings. It returns nil, meaning in-memory counters, when the
// cache is disabled or unreachable.
func NewStorage(cacheClient *goredis.Client) fiber.Storage {
	if cacheClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		log.Warnf("Rate limiter falls back to memory storage: %v", err)
		return nil
	}

	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if h, p, err := net.SplitHostPort(cacheClient.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: storageDatabase,
		Reset:    false,
	})
}

// New builds the limiter middleware keyed on c.IP(). Forwarding headers only
// count when the app trusts the peer, see config.Config.FiberProxyConfig.
// A non-positive Max disables limiting.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			for _, p := range cfg.SkipPaths {
				if strings.HasSuffix(c.Path(), p) {
					return true
				}
			}
			return false
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Rate limit exceeded",
			})
		},
	})
}
