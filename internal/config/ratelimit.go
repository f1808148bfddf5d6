package config

import (
    "os"
    "strconv"
    "time"

    "github.com/iliyamo/auth-service/internal/ratelimit"
)

// LoadRateLimitPresets returns the rate limit presets, starting from
// the shipped defaults and applying any RATE_LIMIT_* environment
// overrides. Every knob is optional.
func LoadRateLimitPresets() ratelimit.Presets {
    p := ratelimit.DefaultPresets()

    p.Login.Points = envInt("RATE_LIMIT_LOGIN_POINTS", p.Login.Points)
    p.Login.Duration = envDur("RATE_LIMIT_LOGIN_DURATION", p.Login.Duration)
    p.Login.BlockDuration = envDur("RATE_LIMIT_LOGIN_BLOCK", p.Login.BlockDuration)

    p.Signup.Points = envInt("RATE_LIMIT_SIGNUP_POINTS", p.Signup.Points)
    p.Signup.Duration = envDur("RATE_LIMIT_SIGNUP_DURATION", p.Signup.Duration)
    p.Signup.BlockDuration = envDur("RATE_LIMIT_SIGNUP_BLOCK", p.Signup.BlockDuration)

    p.Read.Points = envInt("RATE_LIMIT_READ_POINTS", p.Read.Points)
    p.Read.Duration = envDur("RATE_LIMIT_READ_DURATION", p.Read.Duration)

    p.Write.Points = envInt("RATE_LIMIT_WRITE_POINTS", p.Write.Points)
    p.Write.Duration = envDur("RATE_LIMIT_WRITE_DURATION", p.Write.Duration)

    if p.Login.Points < 1 { p.Login.Points = 1 }
    if p.Signup.Points < 1 { p.Signup.Points = 1 }
    if p.Read.Points < 1 { p.Read.Points = 1 }
    if p.Write.Points < 1 { p.Write.Points = 1 }
    return p
}

// RateLimitEnabled reports whether the rate limiting middleware
// should be installed at all.
func RateLimitEnabled() bool { return envBool("RATE_LIMIT_ENABLED", true) }

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
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
