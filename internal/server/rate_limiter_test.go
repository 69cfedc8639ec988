package server

import (
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	limiter := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("message %d should be allowed within burst", i+1)
		}
	}
	if limiter.Allow() {
		t.Error("message beyond burst should be rejected")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	limiter := newRateLimiter(2, 100*time.Millisecond)

	limiter.Allow()
	limiter.Allow()
	if limiter.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(120 * time.Millisecond)

	if !limiter.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiterInvalidArguments(t *testing.T) {
	limiter := newRateLimiter(0, 0)

	if !limiter.Allow() {
		t.Error("first message should be allowed")
	}
	if limiter.Burst() != 1 {
		t.Errorf("Burst() = %d, want 1", limiter.Burst())
	}
}

func TestRateLimiterRefillsOneTokenAtATime(t *testing.T) {
	limiter := newRateLimiter(4, 800*time.Millisecond)

	for i := 0; i < 4; i++ {
		limiter.Allow()
	}

	// A quarter of the interval buys back a single token, not the whole bucket.
	time.Sleep(250 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("one token should have refilled")
	}
	if limiter.Allow() {
		t.Error("only one token should have refilled")
	}
}
