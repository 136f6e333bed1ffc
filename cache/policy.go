package cache

import (
	"math"
	"time"
)

// Policy configures result TTLs.
type Policy struct {
	// DefaultTTL is the TTL to use when none is requested.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Requested TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 1 hour, MaxTTL: 24 hours
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: time.Hour,
		MaxTTL:     24 * time.Hour,
	}
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(requested time.Duration) time.Duration {
	ttl := requested
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

// TTLSeconds converts a whole-second TTL as supplied by clients. Values too
// large for a Duration saturate so EffectiveTTL clamps them to MaxTTL.
func TTLSeconds(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if int64(seconds) > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}
