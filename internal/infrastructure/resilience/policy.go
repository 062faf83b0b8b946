package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// OnRetry is called before each backoff wait.
	OnRetry func(operation string, attempt int, err error)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// SearchConfig is the retry policy for search index calls: three attempts
// with exponential backoff between two and ten seconds.
func SearchConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInitialBackoff = 2 * time.Second
	cfg.RetryMaxBackoff = 10 * time.Second
	return cfg
}

// WithRetry overrides the retry budget, leaving zero values untouched.
func (c Config) WithRetry(attempts int, initial, maxBackoff time.Duration) Config {
	if attempts > 0 {
		c.RetryMaxAttempts = attempts
	}
	if initial > 0 {
		c.RetryInitialBackoff = initial
	}
	if maxBackoff > 0 {
		c.RetryMaxBackoff = maxBackoff
	}
	return c
}

// normalize replaces unset or out-of-range fields with DefaultConfig values.
func (c Config) normalize() Config {
	def := DefaultConfig()

	c.RetryMaxAttempts = orDefault(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = orDefault(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(orDefault(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	c.BreakerMinRequests = orDefault(c.BreakerMinRequests, def.BreakerMinRequests)
	c.BreakerHalfOpenMaxCalls = orDefault(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	c.BreakerOpenTimeout = orDefault(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return c
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
