// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Attribution policies for salary accrual.
const (
	AttributionEqualSplit = "equal_split"
	AttributionExpression = "expression"
)

// Config holds every setting of the API server and the worker.
type Config struct {
	AppEnv   string
	AppPort  string
	LogLevel string

	DatabaseURL string
	DBMaxConns  int32
	// DBDeadlockRetries replays a transaction aborted by a deadlock; 0 reports it to the client.
	DBDeadlockRetries int

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	JWTSecret string
	JWTIssuer string

	PubSubProjectID       string
	PubSubTopic           string
	PubSubCredentialsJSON string

	IdempotencyTTL  time.Duration
	AccrualInterval time.Duration

	OrderNumberPad int

	SalaryAttribution     string
	SalaryAttributionExpr string
}

// Development reports whether the server runs with development defaults.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	cfg := read(files...)
	return cfg, cfg.Validate()
}

// LoadWorker is Load for the background worker, which never validates tokens.
func LoadWorker(files ...string) (Config, error) {
	cfg := read(files...)
	return cfg, cfg.validate(false)
}

func read(files ...string) Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(files...)

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 25)),

		DBDeadlockRetries: getEnvInt("TX_DEADLOCK_RETRIES", 0),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 90*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "dentallab"),

		PubSubProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:           getEnv("PUBSUB_TOPIC", "lab-notifications"),
		PubSubCredentialsJSON: getEnv("PUBSUB_CREDENTIALS_JSON", ""),

		IdempotencyTTL:  getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		AccrualInterval: getEnvDuration("ACCRUAL_INTERVAL", time.Hour),

		OrderNumberPad: getEnvInt("ORDER_NUMBER_PAD", 6),

		SalaryAttribution:     strings.ToLower(getEnv("SALARY_ATTRIBUTION", AttributionEqualSplit)),
		SalaryAttributionExpr: getEnv("SALARY_ATTRIBUTION_EXPR", ""),
	}
	return cfg
}

// Validate checks required settings and value ranges.
func (c Config) Validate() error {
	return c.validate(true)
}

func (c Config) validate(requireJWT bool) error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if requireJWT && c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.OrderNumberPad < 1 || c.OrderNumberPad > 18 {
		problems = append(problems, "ORDER_NUMBER_PAD must be between 1 and 18")
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, "CACHE_TTL must be positive")
	}
	if c.DBDeadlockRetries < 0 {
		problems = append(problems, "TX_DEADLOCK_RETRIES must not be negative")
	}
	if c.IdempotencyTTL <= 0 || c.AccrualInterval <= 0 {
		problems = append(problems, "IDEMPOTENCY_TTL and ACCRUAL_INTERVAL must be positive")
	}
	switch c.SalaryAttribution {
	case AttributionEqualSplit:
	case AttributionExpression:
		if strings.TrimSpace(c.SalaryAttributionExpr) == "" {
			problems = append(problems, "SALARY_ATTRIBUTION_EXPR is required for expression attribution")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown SALARY_ATTRIBUTION %q", c.SalaryAttribution))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are seconds.
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
