package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitDefaults(t *testing.T) {
	cfg := Init()

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "chirp-events", cfg.KafkaTopic)
	assert.Same(t, cfg, Get())
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv("MODE", "worker")
	t.Setenv("API_PREFIX", "/v2/")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MONGO_TRANSACTIONS", "true")

	cfg := Init()

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, "/v2", cfg.APIPrefix)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.MongoTransactions)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseDuration("nope", 3*time.Second))
	assert.Equal(t, time.Second, parseDuration("1s", 3*time.Second))
}
