package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_USER", "seat")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "seats")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ROOM_PRUNE_INTERVAL", "1m")
	t.Setenv("APP_ENV", "prod")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.SessionCacheTTLCap)
	assert.Equal(t, 1024, cfg.WS.RoomBacklog)
	assert.Equal(t, int64(64*1024), cfg.WS.ReadLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.WS.PruneInterval)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRateLimitConfig(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, 2, cfg.RefillTokens)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, "rl", cfg.Prefix)

	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	cfg = LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 50*time.Second, cfg.TTL, "ttl is raised to five intervals")
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("LAYOUT_CACHE_METHODS", "get, head")
	t.Setenv("LAYOUT_CACHE_KEY_STRATEGY", "bogus")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, "path_query", cfg.KeyStrategy)
	assert.Equal(t, 5*time.Second, cfg.TTL)
	assert.Equal(t, "layout", cfg.Prefix)
}

func TestLoadQueueConfig(t *testing.T) {
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("SEAT_ACTIVITY_BUFFER", "-3")
	cfg := LoadQueueConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.URL)
	assert.Equal(t, "seat.activity", cfg.QueueName)
	assert.Equal(t, 1, cfg.BufferSize)

	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	assert.Equal(t, "amqp://primary/", LoadQueueConfig().URL)
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, time.Second, envDur("X_DUR", time.Second))
	assert.True(t, envBool("X_BOOL", true))
}
