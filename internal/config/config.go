// Package config loads storefront settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL"`
	SiteURL  string `env:"SITE_URL" envDefault:"https://freegamestoplayonline.store"`

	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"memory"` // "memory" or "redis"
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"100"`
	CacheSweep    time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"5m"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPrefix   string        `env:"REDIS_PREFIX" envDefault:"gamestore"`

	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	SupabaseSchema  string `env:"SUPABASE_SCHEMA"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminToken    string `env:"ADMIN_TOKEN"`

	ImgBBAPIKey  string `env:"IMGBB_API_KEY"`
	ImgBBBaseURL string `env:"IMGBB_BASE_URL" envDefault:"https://www.imgbb.io"`

	AdSensePublisherID string `env:"ADSENSE_PUBLISHER_ID" envDefault:"pub-5646035224187434"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return cfg, nil
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// Validate reports every missing or malformed backend setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is missing"))
	} else if !isValidURL(c.SupabaseURL) {
		errs = append(errs, errors.New("SUPABASE_URL is not a valid URL"))
	}
	if c.SupabaseAnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is missing"))
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of memory, redis", c.CacheBackend))
	}
	if !isValidURL(c.SiteURL) {
		errs = append(errs, errors.New("SITE_URL is not a valid URL"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("environment configuration errors: %w", errors.Join(errs...))
	}
	return nil
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
