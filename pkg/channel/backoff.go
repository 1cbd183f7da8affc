package channel

import "time"

// ReconnectDelay returns the wait before reconnect attempt n (1-based):
// min(base * 2^(n-1), limit). Attempts below 1 are treated as 1.
func ReconnectDelay(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= limit {
			return limit
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}
