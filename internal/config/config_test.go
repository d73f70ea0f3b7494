package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
    t.Helper()
    for k, v := range map[string]string{
        "APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "eco", "DB_HOST": "127.0.0.1",
        "DB_PORT": "3306", "DB_NAME": "ecotour", "JWT_SECRET": "s",
    } {
        t.Setenv(k, v)
    }
}

func TestLoad_Defaults(t *testing.T) {
    setRequired(t)
    cfg := Load()

    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
    assert.Equal(t, "ECO", cfg.OrderPrefix)
    assert.Equal(t, "TKT", cfg.TicketPrefix)
    assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
    assert.Equal(t, 25, cfg.DBMaxOpen)
    assert.Empty(t, cfg.WebhookToken)
    assert.Equal(t, int64(50000), cfg.Pricing.Adult)
}

func TestLoad_Overrides(t *testing.T) {
    setRequired(t)
    t.Setenv("BOOKING_PENDING_TTL", "2h")
    t.Setenv("ORDER_PREFIX", "PARK")
    t.Setenv("TARIFF_ADULT", "75000")
    t.Setenv("QUEUE_ENABLED", "off")
    t.Setenv("PAYMENT_WEBHOOK_TOKEN", "hook")
    t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
    cfg := Load()

    assert.Equal(t, 2*time.Hour, cfg.PendingTTL)
    assert.Equal(t, "PARK", cfg.OrderPrefix)
    assert.Equal(t, int64(75000), cfg.Pricing.Adult)
    assert.False(t, cfg.Queue.Enabled)
    assert.Equal(t, "hook", cfg.WebhookToken)
    assert.Equal(t, 25, cfg.DBMaxOpen, "unparsable values fall back to the default")
}

func TestLocation(t *testing.T) {
    loc, err := Config{Timezone: "Asia/Jakarta"}.Location()
    require.NoError(t, err)
    _, offset := time.Date(2026, 10, 15, 0, 0, 0, 0, loc).Zone()
    assert.Equal(t, 7*3600, offset)

    loc, err = Config{Timezone: "UTC"}.Location()
    require.NoError(t, err)
    assert.Equal(t, "UTC", loc.String())
}

func TestLocation_UnknownZoneIsAnError(t *testing.T) {
    loc, err := Config{Timezone: "Not/AZone"}.Location()
    assert.Error(t, err)
    assert.Nil(t, loc)
    assert.Contains(t, err.Error(), "Not/AZone")
}

func TestLoadQueueConfig_URLPrecedence(t *testing.T) {
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://b/")
    assert.Equal(t, "amqp://b/", LoadQueueConfig().URL)

    t.Setenv("RABBITMQ_URL", "amqp://a/")
    assert.Equal(t, "amqp://a/", LoadQueueConfig().URL)
}

func TestLoadRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_TTL", "1s")
    t.Setenv("RATE_LIMIT_SCAN_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_CHECKOUT_REFILL_INTERVAL", "10s")
    cfg := LoadRateLimitConfig()

    assert.Equal(t, 1, cfg.Scan.Capacity, "capacity is clamped to at least one")
    assert.Equal(t, 50*time.Second, cfg.TTL, "TTL covers five of the longest refill intervals")
    assert.Equal(t, "ip_user_route", cfg.KeyStrategy)
}

func TestLoadRedisConfig(t *testing.T) {
    t.Setenv("REDIS_ADDR", "cache:6380")
    t.Setenv("REDIS_HOST", "")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "true")
    t.Setenv("REDIS_PASSWORD", "")
    cfg := LoadRedisConfig()
    assert.Equal(t, RedisConfig{Addr: "cache:6380", DB: 2, TLS: true}, cfg)

    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6379")
    assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}
