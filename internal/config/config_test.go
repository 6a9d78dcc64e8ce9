package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lab")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 6, cfg.OrderNumberPad)
	assert.Equal(t, AttributionEqualSplit, cfg.SalaryAttribution)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadWorker_NoJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lab")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ACCRUAL_INTERVAL", "30m")

	cfg, err := LoadWorker(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.AccrualInterval)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_FromDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "DATABASE_URL=postgres://db/lab\nJWT_SECRET=s3\nCACHE_TTL=120\nORDER_NUMBER_PAD=8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv does not override variables already present, so clear them for the test.
	for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "CACHE_TTL", "ORDER_NUMBER_PAD"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/lab", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.OrderNumberPad)
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL:       "postgres://x",
		JWTSecret:         "s",
		OrderNumberPad:    6,
		CacheTTL:          time.Minute,
		IdempotencyTTL:    time.Hour,
		AccrualInterval:   time.Hour,
		SalaryAttribution: AttributionEqualSplit,
	}
	require.NoError(t, base.Validate())

	missingExpr := base
	missingExpr.SalaryAttribution = AttributionExpression
	assert.ErrorContains(t, missingExpr.Validate(), "SALARY_ATTRIBUTION_EXPR")

	unknown := base
	unknown.SalaryAttribution = "weighted"
	assert.ErrorContains(t, unknown.Validate(), "unknown SALARY_ATTRIBUTION")

	empty := Config{}
	err := empty.Validate()
	assert.ErrorContains(t, err, "DATABASE_URL")
	assert.ErrorContains(t, err, "JWT_SECRET")
}
