// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Cooldown policies applied between analysis batches.
const (
	CooldownFixed       = "fixed"
	CooldownExponential = "exponential"
	CooldownNone        = "none"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	AuthDisabled  bool
	EncryptionKey []byte // 32-byte master key, used to derive signing secrets

	// CORS
	CORSOrigins []string

	// LLM providers
	Providers ProvidersConfig

	// Analysis pipeline
	Analysis AnalysisConfig

	// Object Storage (S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	BlocklistKey     string // bucket key of a JSON array of blocked IPs and CIDRs

	// Outbound webhooks
	WebhookURL    string
	WebhookSecret string // svix "whsec_" secret

	// Cleanup
	CleanupEnabled  bool
	CleanupSchedule string        // cron expression
	Retention       time.Duration // max age of stored analyses

	// Worker
	WorkerPollInterval        time.Duration
	WorkerConcurrency         int
	WorkerShutdownGracePeriod time.Duration

	// IdleTimeout stops the server after this long without traffic; 0 disables it.
	IdleTimeout time.Duration
}

// AnalysisConfig controls the brand analysis pipeline.
type AnalysisConfig struct {
	BatchSize      int
	PromptCap      int
	CooldownPolicy string
	Cooldown       time.Duration
	CooldownMax    time.Duration
	MockMode       bool
	AEOMaxPages    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnvInt("PORT", 8080),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL:  getEnv("DATABASE_URL", "file:autoreach.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		AuthDisabled: getEnvBool("AUTH_DISABLED", false),
		CORSOrigins:  getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
		BlocklistKey:     getEnv("BLOCKLIST_KEY", "config/blocklist.json"),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		CleanupEnabled:  getEnvBool("CLEANUP_ENABLED", true),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		Retention:       getEnvDuration("ANALYSIS_RETENTION", 90*24*time.Hour),

		WorkerPollInterval:        getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerConcurrency:         getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerShutdownGracePeriod: getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
	}

	cfg.Analysis = AnalysisConfig{
		BatchSize:      getEnvInt("ANALYSIS_BATCH_SIZE", 3),
		PromptCap:      getEnvInt("ANALYSIS_PROMPT_CAP", 4),
		CooldownPolicy: strings.ToLower(getEnv("ANALYSIS_COOLDOWN_POLICY", CooldownFixed)),
		Cooldown:       getEnvDuration("ANALYSIS_COOLDOWN", 30*time.Second),
		CooldownMax:    getEnvDuration("ANALYSIS_COOLDOWN_MAX", 2*time.Minute),
		MockMode:       getEnvBool("USE_MOCK_MODE", false),
		AEOMaxPages:    getEnvInt("AEO_MAX_PAGES", 5),
	}

	cfg.Providers = LoadProviders()
	if path := getEnv("PROVIDERS_FILE", ""); path != "" {
		if err := cfg.Providers.ApplyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load providers file: %w", err)
		}
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.JWTSecret == "" && !cfg.AuthDisabled {
		cfg.JWTSecret = generateRandomSecret(64)
	}

	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveKey(cfg.JWTSecret, "autoreach-encryption-key-v1", "master-key")
	}

	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = "whsec_" + base64.StdEncoding.EncodeToString(
			deriveKey(string(cfg.EncryptionKey), "autoreach-webhook-v1", "svix-signing"),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_BATCH_SIZE must be >= 1, got %d", c.Analysis.BatchSize))
	}
	if c.Analysis.PromptCap < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_PROMPT_CAP must be >= 1, got %d", c.Analysis.PromptCap))
	}
	switch c.Analysis.CooldownPolicy {
	case CooldownFixed, CooldownExponential, CooldownNone:
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYSIS_COOLDOWN_POLICY %q", c.Analysis.CooldownPolicy))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be >= 1, got %d", c.WorkerConcurrency))
	}
	return errors.Join(errs...)
}

// MockMode reports whether analyses should use synthetic provider responses.
func (c *Config) MockMode() bool {
	return c.Analysis.MockMode || len(c.Providers.Configured()) == 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "autoreach-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveKey derives a 32-byte key from a high-entropy secret using HKDF-SHA256.
func deriveKey(secret, salt, info string) []byte {
	hkdfReader := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(info))

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}
	return key
}
