package handlers

import (
	"testing"
	"time"
)

func TestSimpleRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := NewSimpleRateLimiter(2, time.Minute, clock)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first two attempts allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected third attempt blocked")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected other key unaffected")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected allowance after window reset")
	}
}

func TestSimpleRateLimiterDisabled(t *testing.T) {
	if limiter := NewSimpleRateLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter when disabled")
	}
}
