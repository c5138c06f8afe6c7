package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Cache.RoleTTL)
	assert.Equal(t, float64(10), cfg.Grading.CommitteeScaleFactor)
	assert.Equal(t, int64(20*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Contains(t, cfg.Uploads.AllowedMIMEs, "application/pdf")
	assert.Contains(t, cfg.Database.DSN(), "dbname=thesis")
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ROLE_CACHE_TTL", "90s")
	t.Setenv("GRADE_COMMITTEE_SCALE_FACTOR", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Cache.RoleTTL)
	assert.Equal(t, float64(1), cfg.Grading.CommitteeScaleFactor)
}

func TestProductionRejectsDevelopmentSecrets(t *testing.T) {
	t.Setenv("ENV", EnvProduction)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "real-secret")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOADS_SIGNED_URL_SECRET")

	t.Setenv("UPLOADS_SIGNED_URL_SECRET", "real-uploads-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
}

func TestValidateAPIPrefix(t *testing.T) {
	cfg := &Config{Port: 8080, APIPrefix: "api", Grading: GradingConfig{CommitteeScaleFactor: 10}}
	assert.Error(t, cfg.Validate())

	cfg.APIPrefix = "/api"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCommitteeScaleFactor(t *testing.T) {
	cfg := &Config{Port: 8080, APIPrefix: "/api", Grading: GradingConfig{CommitteeScaleFactor: 10}}
	assert.NoError(t, cfg.Validate())

	cfg.Grading.CommitteeScaleFactor = 10.5
	assert.EqualError(t, cfg.Validate(), "GRADE_COMMITTEE_SCALE_FACTOR must be in (0, 10]")

	cfg.Grading.CommitteeScaleFactor = 0
	assert.Error(t, cfg.Validate())

	t.Setenv("GRADE_COMMITTEE_SCALE_FACTOR", "11")
	_, err := Load()
	assert.Error(t, err)
}
