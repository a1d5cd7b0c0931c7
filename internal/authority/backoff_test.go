package authority

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	if g, e := backoff(cfg, 1, "0"), time.Duration(0); g != e {
		t.Errorf("Retry-After 0: got %v", g)
	}
	if g, e := backoff(cfg, 1, " 2 "), time.Second; g != e {
		t.Errorf("Retry-After beyond MaxDelay: got %v, want %v", g, e)
	}
	for attempt := 1; attempt <= 6; attempt++ {
		window := min(cfg.BaseDelay<<(attempt-1), cfg.MaxDelay)
		for i := 0; i < 20; i++ {
			if d := backoff(cfg, attempt, "Wed, 21 Oct 2015 07:28:00 GMT"); d < 0 || d > window {
				t.Fatalf("attempt %d: %v outside [0, %v]", attempt, d, window)
			}
		}
	}
}

func TestShouldRetryStatus(t *testing.T) {
	for status, want := range map[int]bool{429: true, 502: true, 503: true, 504: true, 500: false, 404: false, 400: false} {
		if got := shouldRetryStatus(status); got != want {
			t.Errorf("shouldRetryStatus(%d) = %v", status, got)
		}
	}
}
