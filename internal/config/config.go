// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the translator configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-translator/internal/model"
	"github.com/olegiv/ocms-translator/internal/provider"
	"github.com/olegiv/ocms-translator/internal/store"
)

// Invoker kinds
const (
	InvokerLocal = "local"
	InvokerHTTP  = "http"
)

// MinWebhookSecretLength is the minimum length of the HMAC secret when set.
const MinWebhookSecretLength = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver   string `env:"TRANSLATOR_DB_DRIVER" envDefault:"sqlite"`
	DBDSN      string `env:"TRANSLATOR_DB_DSN" envDefault:"./data/translator.db"`
	ServerHost string `env:"TRANSLATOR_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"TRANSLATOR_SERVER_PORT" envDefault:"8090"`
	Env        string `env:"TRANSLATOR_ENV" envDefault:"development"`
	LogLevel   string `env:"TRANSLATOR_LOG_LEVEL" envDefault:"info"`

	// Pipeline
	MaxChunkLength    int           `env:"TRANSLATOR_MAX_CHUNK_LENGTH" envDefault:"1500"`
	BatchSize         int           `env:"TRANSLATOR_BATCH_SIZE" envDefault:"20"`
	StallThreshold    time.Duration `env:"TRANSLATOR_STALL_THRESHOLD" envDefault:"2m"`
	DispatchSchedule  string        `env:"TRANSLATOR_DISPATCH_SCHEDULE" envDefault:"* * * * *"`
	ReconcileSchedule string        `env:"TRANSLATOR_RECONCILE_SCHEDULE" envDefault:"*/5 * * * *"`
	ReconcileLimit    int           `env:"TRANSLATOR_RECONCILE_LIMIT" envDefault:"50"`
	EventRetention    time.Duration `env:"TRANSLATOR_EVENT_RETENTION" envDefault:"720h"`
	Languages         []string      `env:"TRANSLATOR_LANGUAGES" envSeparator:","` // empty means the default set

	// Worker invocation
	Invoker       string  `env:"TRANSLATOR_INVOKER" envDefault:"local"`
	Workers       int     `env:"TRANSLATOR_WORKERS" envDefault:"4"`
	DispatchRate  float64 `env:"TRANSLATOR_DISPATCH_RATE" envDefault:"2"` // invocations per second
	WorkerURL     string  `env:"TRANSLATOR_WORKER_URL"`
	WebhookSecret string  `env:"TRANSLATOR_WEBHOOK_SECRET"`

	// Sweep lease
	RedisURL    string `env:"TRANSLATOR_REDIS_URL"`
	LeasePrefix string `env:"TRANSLATOR_LEASE_PREFIX" envDefault:"translator:"`

	// Providers; a provider without an API key is skipped
	ProviderOrder []string `env:"TRANSLATOR_PROVIDER_ORDER" envSeparator:"," envDefault:"groq,gemini,openai,claude"`
	GroqAPIKey    string   `env:"GROQ_API_KEY"`
	GroqModel     string   `env:"GROQ_MODEL"`
	GroqBaseURL   string   `env:"GROQ_BASE_URL"`
	GeminiAPIKey  string   `env:"GEMINI_API_KEY"`
	GeminiModel   string   `env:"GEMINI_MODEL"`
	GeminiBaseURL string   `env:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string   `env:"OPENAI_API_KEY"`
	OpenAIModel   string   `env:"OPENAI_MODEL"`
	OpenAIBaseURL string   `env:"OPENAI_BASE_URL"`
	ClaudeAPIKey  string   `env:"ANTHROPIC_API_KEY"`
	ClaudeModel   string   `env:"ANTHROPIC_MODEL"`
	ClaudeBaseURL string   `env:"ANTHROPIC_BASE_URL"`

	// Seeding configuration
	DoSeed bool `env:"TRANSLATOR_DO_SEED" envDefault:"false"` // Seed a sample document on startup
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisLease returns true if the sweep lease is held in Redis.
func (c Config) UseRedisLease() bool {
	return c.RedisURL != ""
}

// Dialect returns the configured database dialect.
func (c Config) Dialect() store.Dialect {
	d, _ := store.ParseDialect(c.DBDriver)
	return d
}

// TargetLanguages returns the configured translation targets.
func (c Config) TargetLanguages() []model.Language {
	if len(c.Languages) == 0 {
		return model.DefaultLanguages()
	}
	langs, err := model.ParseLanguages(c.Languages)
	if err != nil {
		// validated in Load
		panic(err)
	}
	return langs
}

// ProviderSettings returns per-provider settings keyed by provider name.
func (c Config) ProviderSettings() map[string]provider.Settings {
	return map[string]provider.Settings{
		provider.ProviderGroq:   {Name: provider.ProviderGroq, APIKey: c.GroqAPIKey, Model: c.GroqModel, BaseURL: c.GroqBaseURL},
		provider.ProviderGemini: {Name: provider.ProviderGemini, APIKey: c.GeminiAPIKey, Model: c.GeminiModel, BaseURL: c.GeminiBaseURL},
		provider.ProviderOpenAI: {Name: provider.ProviderOpenAI, APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL},
		provider.ProviderClaude: {Name: provider.ProviderClaude, APIKey: c.ClaudeAPIKey, Model: c.ClaudeModel, BaseURL: c.ClaudeBaseURL},
	}
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.hasAnyProviderKey() {
		slog.Warn("no translation provider API keys configured; chunk workers will fail until one is set")
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Invoker = strings.ToLower(strings.TrimSpace(c.Invoker))
	for i, name := range c.ProviderOrder {
		c.ProviderOrder[i] = strings.ToLower(strings.TrimSpace(name))
	}
	langs := c.Languages[:0]
	for _, code := range c.Languages {
		if code = strings.TrimSpace(code); code != "" {
			langs = append(langs, code)
		}
	}
	c.Languages = langs
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	if _, err := store.ParseDialect(c.DBDriver); err != nil {
		errs = append(errs, fmt.Errorf("TRANSLATOR_DB_DRIVER: %w", err))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("TRANSLATOR_DB_DSN must not be empty"))
	}
	if c.MaxChunkLength <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_MAX_CHUNK_LENGTH must be positive, got %d", c.MaxChunkLength))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.StallThreshold <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_STALL_THRESHOLD must be positive, got %s", c.StallThreshold))
	}
	if c.ReconcileLimit <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_RECONCILE_LIMIT must be positive, got %d", c.ReconcileLimit))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_WORKERS must be positive, got %d", c.Workers))
	}
	if c.DispatchRate <= 0 {
		errs = append(errs, fmt.Errorf("TRANSLATOR_DISPATCH_RATE must be positive, got %g", c.DispatchRate))
	}
	for key, spec := range map[string]string{
		"TRANSLATOR_DISPATCH_SCHEDULE":  c.DispatchSchedule,
		"TRANSLATOR_RECONCILE_SCHEDULE": c.ReconcileSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid cron expression %q: %w", key, spec, err))
		}
	}

	switch c.Invoker {
	case InvokerLocal:
	case InvokerHTTP:
		if u, err := url.Parse(c.WorkerURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.New("TRANSLATOR_WORKER_URL must be an absolute URL when TRANSLATOR_INVOKER=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSLATOR_INVOKER must be %q or %q, got %q", InvokerLocal, InvokerHTTP, c.Invoker))
	}

	if c.WebhookSecret != "" && len(c.WebhookSecret) < MinWebhookSecretLength {
		errs = append(errs, fmt.Errorf("TRANSLATOR_WEBHOOK_SECRET must be at least %d bytes long", MinWebhookSecretLength))
	}

	if len(c.Languages) > 0 {
		if _, err := model.ParseLanguages(c.Languages); err != nil {
			errs = append(errs, fmt.Errorf("TRANSLATOR_LANGUAGES: %w", err))
		}
	}

	known := make(map[string]bool)
	for _, name := range provider.DefaultOrder {
		known[name] = true
	}
	for _, name := range c.ProviderOrder {
		if !known[name] {
			errs = append(errs, fmt.Errorf("TRANSLATOR_PROVIDER_ORDER: unknown provider %q", name))
		}
	}

	return errors.Join(errs...)
}

func (c Config) hasAnyProviderKey() bool {
	for _, name := range c.ProviderOrder {
		if c.ProviderSettings()[name].APIKey != "" {
			return true
		}
	}
	return false
}
