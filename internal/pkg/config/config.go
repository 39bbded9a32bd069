package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fit9to5/billing-api/internal/pkg/env"
)

// Config is the validated runtime configuration of the billing API.
type Config struct {
	AppHost string `validate:"required"`
	AppPort string `validate:"required,numeric"`

	// AllowedOrigins are the front-end origins allowed by CORS.
	AllowedOrigins []string `validate:"required,min=1,dive,url"`

	StripeSecretKey     string `validate:"required"`
	StripeWebhookSecret string `validate:"required"`
	StripePriceID       string `validate:"required"`
	StripeAPIBase       string `validate:"omitempty,url"`

	AuthJWTSecret string `validate:"required,min=16"`
	AuthIssuer    string
	AuthAudience  string

	RateLimitMax int `validate:"gte=0"`

	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	// Empty means the socket address is the client address.
	TrustedProxies []string `validate:"omitempty,dive,ip|cidr"`
}

// LoadFromEnv reads the configuration from the process environment and the
// optional .env file loaded by env.SetupEnvFile.
func LoadFromEnv() (*Config, error) {
	limit, err := strconv.Atoi(strings.TrimSpace(env.GetEnv("RATE_LIMIT_MAX", "60")))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_MAX: %w", err)
	}

	cfg := &Config{
		AppHost:             env.GetEnv("APP_HOST", "localhost"),
		AppPort:             env.GetEnv("APP_PORT", "4000"),
		AllowedOrigins:      env.GetList("ALLOWED_ORIGINS", "http://localhost:3000"),
		StripeSecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		StripePriceID:       strings.TrimSpace(env.GetEnv("STRIPE_PRICE_ID", "")),
		StripeAPIBase:       strings.TrimSpace(env.GetEnv("STRIPE_API_BASE", "")),
		AuthJWTSecret:       env.GetEnv("AUTH_JWT_SECRET", ""),
		AuthIssuer:          env.GetEnv("AUTH_ISSUER", ""),
		AuthAudience:        env.GetEnv("AUTH_AUDIENCE", ""),
		RateLimitMax:        limit,
		TrustedProxies:      env.GetList("TRUSTED_PROXIES", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and reports missing settings by name.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// FiberProxyConfig makes c.IP() read X-Forwarded-For, but only for requests
// arriving from a trusted proxy.
func (c *Config) FiberProxyConfig(fc fiber.Config) fiber.Config {
	if len(c.TrustedProxies) == 0 {
		return fc
	}
	fc.ProxyHeader = fiber.HeaderXForwardedFor
	fc.EnableTrustedProxyCheck = true
	fc.TrustedProxies = c.TrustedProxies
	return fc
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}
