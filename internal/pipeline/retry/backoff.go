package retry

import "time"

// Backoff returns the sleep duration before retry attempt n (1-based):
// full jitter over an exponentially growing window, capped at max.
// The rnd function must return a value in [0, 1).
func Backoff(attempt int, base, max time.Duration, rnd func() float64) time.Duration {
	if base <= 0 {
		return 0
	}
	if max <= 0 || max < base {
		max = base
	}

	window := base
	for i := 1; i < attempt; i++ {
		if window >= max/2 {
			window = max
			break
		}
		window *= 2
	}
	if window > max {
		window = max
	}
	return time.Duration(rnd() * float64(window))
}
