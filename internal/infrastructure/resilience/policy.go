package resilience

import "time"

// RetryPolicy bounds how often a failed operation is reattempted and how
// the wait between attempts grows.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the per-operation circuit breakers guarding the
// embedding, generation, and publish calls.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// withDefaults fills zero or out-of-range fields from DefaultConfig so a
// partially specified policy still behaves sanely.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoff <= 0 {
		c.Retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		c.Retry.MaxBackoff = c.Retry.InitialBackoff
	}
	if c.Retry.Multiplier < 1.0 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}

	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		c.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if c.Breaker.HalfOpenMaxCalls == 0 {
		c.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	return c
}
