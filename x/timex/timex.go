package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Periods returns n whole periods of p, never less than one period.
func Periods(p time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(n) * p
}
