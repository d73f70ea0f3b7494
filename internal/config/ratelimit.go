package config

import (
    "os"
    "strconv"
    "time"
)

// BucketConfig describes one token bucket.  Capacity is the burst size and
// RefillTokens are added every RefillInterval.
type BucketConfig struct {
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
}

// RateLimitConfig holds the two buckets the API uses.  Checkout protects the
// public booking and coupon endpoints; Scan protects the gate endpoints,
// which see bursts when a group arrives but must never lock an operator out
// for long.
type RateLimitConfig struct {
    Enabled     bool
    Checkout    BucketConfig
    Scan        BucketConfig
    TTL         time.Duration
    KeyStrategy string
    Prefix      string
    Debug       bool
}

func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Checkout: loadBucket("RATE_LIMIT_CHECKOUT", BucketConfig{
            Capacity: 20, RefillTokens: 1, RefillInterval: 3 * time.Second,
        }),
        Scan: loadBucket("RATE_LIMIT_SCAN", BucketConfig{
            Capacity: 120, RefillTokens: 2, RefillInterval: time.Second,
        }),
        TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:       envBool("RATE_LIMIT_DEBUG", false),
    }
    longest := cfg.Checkout.RefillInterval
    if cfg.Scan.RefillInterval > longest {
        longest = cfg.Scan.RefillInterval
    }
    if minTTL := 5 * longest; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}

// loadBucket reads <prefix>_CAPACITY, <prefix>_REFILL_TOKENS and
// <prefix>_REFILL_INTERVAL on top of def and clamps them to sane minimums.
func loadBucket(prefix string, def BucketConfig) BucketConfig {
    b := BucketConfig{
        Capacity:       envInt(prefix+"_CAPACITY", def.Capacity),
        RefillTokens:   envInt(prefix+"_REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(prefix+"_REFILL_INTERVAL", def.RefillInterval),
    }
    if b.Capacity < 1 { b.Capacity = 1 }
    if b.RefillTokens < 1 { b.RefillTokens = 1 }
    if b.RefillInterval <= 0 { b.RefillInterval = time.Second }
    return b
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envInt64(k string, d int64) int64 {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.ParseInt(v, 10, 64); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
