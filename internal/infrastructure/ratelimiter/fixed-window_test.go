package ratelimiter_test

import (
	"testing"
	"time"

	"github.com/auxroom/auxroom/internal/infrastructure/ratelimiter"
)

func TestAllowEnforcesWindowLimit(t *testing.T) {
	rl := ratelimiter.NewFixedWindowRateLimiter(3, time.Hour)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("10.0.0.1"); !ok {
			t.Fatalf("Allow: request %d denied under the limit", i)
		}
	}

	ok, retry := rl.Allow("10.0.0.1")
	if ok {
		t.Fatalf("Allow: fourth request slipped past the limit")
	}
	if retry <= 0 {
		t.Fatalf("Allow: denied without a retry hint")
	}

	// Each client gets its own window.
	if ok, _ := rl.Allow("10.0.0.2"); !ok {
		t.Fatalf("Allow: second client denied by the first client's window")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	rl := ratelimiter.NewFixedWindowRateLimiter(1, time.Minute)
	rl.Close()
	rl.Close()
}
