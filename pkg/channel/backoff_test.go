package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestReconnectDelay(t *testing.T) {
	base, limit := time.Second, 10*time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
		{1000, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReconnectDelay(base, limit, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestReconnectDelayProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := time.Duration(rapid.Int64Range(1, int64(5*time.Second)).Draw(rt, "base"))
		limit := base + time.Duration(rapid.Int64Range(0, int64(time.Minute)).Draw(rt, "extra"))
		n := rapid.IntRange(1, 200).Draw(rt, "attempt")

		d := ReconnectDelay(base, limit, n)
		if d < base || d > limit {
			rt.Fatalf("delay %v outside [%v, %v]", d, base, limit)
		}
		if next := ReconnectDelay(base, limit, n+1); next < d {
			rt.Fatalf("delay decreased from %v to %v at attempt %d", d, next, n)
		}
		if n < 20 {
			uncapped := base << (n - 1)
			if uncapped <= limit && d != uncapped {
				rt.Fatalf("attempt %d: got %v, want %v", n, d, uncapped)
			}
		}
	})
}
