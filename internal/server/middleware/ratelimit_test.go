package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < 5; i++ {
		if !rl.Allow("1.2.3.4", 5, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4", 5, time.Minute) {
		t.Fatal("sixth request should be denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < 3; i++ {
		rl.Allow("a", 3, time.Minute)
	}
	if rl.Allow("a", 3, time.Minute) {
		t.Fatal("key a should be exhausted")
	}
	if !rl.Allow("b", 3, time.Minute) {
		t.Fatal("key b should be unaffected")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()
	if !rl.Allow("x", 1, 10*time.Millisecond) {
		t.Fatal("first request should pass")
	}
	if rl.Allow("x", 1, 10*time.Millisecond) {
		t.Fatal("second request in window should be denied")
	}
	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("x", 1, 10*time.Millisecond) {
		t.Fatal("request after window should pass")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("stale", 1, time.Nanosecond)
	rl.Allow("fresh", 1, time.Hour)
	time.Sleep(time.Millisecond)
	rl.Cleanup()
	if _, ok := rl.entries["stale"]; ok {
		t.Fatal("expired entry should be swept")
	}
	if _, ok := rl.entries["fresh"]; !ok {
		t.Fatal("live entry should survive cleanup")
	}
}

func TestRateLimiterAllowSweepsExpiredEntries(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("10.0.0.1", 5, -time.Second) // window already elapsed
	rl.Allow("10.0.0.2", 5, time.Minute)

	rl.nextSweep = time.Time{} // force the next Allow to sweep
	rl.Allow("10.0.0.3", 5, time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["10.0.0.1"]; ok {
		t.Error("expired entry should be swept by Allow")
	}
	if _, ok := rl.entries["10.0.0.2"]; !ok {
		t.Error("live entry should survive the sweep")
	}
	if _, ok := rl.entries["10.0.0.3"]; !ok {
		t.Error("fresh entry should be recorded")
	}
}
