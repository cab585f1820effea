package channel

import (
	"math"
	"time"
)

// backoffFactor is the growth rate between successive reconnect delays.
const backoffFactor = 1.5

// Backoff returns the delay before reconnect attempt n (n starts at 1):
// base × 1.5^(n-1). There is no jitter and no upper clamp; the attempt budget
// is the only bound.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(backoffFactor, float64(attempt-1))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
