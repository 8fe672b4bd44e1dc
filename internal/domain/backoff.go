package domain

import "time"

const (
	backoffBase = 30 * time.Second
	backoffCap  = 30 * time.Minute
)

// Backoff returns the delay before retry n (1-based): 30s * 4^(n-1),
// capped at 30 minutes.
func Backoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := backoffBase
	for i := 1; i < retryCount; i++ {
		d *= 4
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}
