package bridge

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker(3, 2, time.Minute)
	now := time.Now()

	if b.State() != Closed {
		t.Fatalf("breaker should start Closed, not %s", b.State())
	}

	b.Failure(now)
	b.Failure(now)
	if b.State() != Closed {
		t.Fatal("breaker should stay Closed below the failure threshold")
	}

	b.Failure(now)
	if b.State() != Open {
		t.Fatalf("breaker should be Open after 3 failures, not %s", b.State())
	}
	if b.Allow(now) {
		t.Fatal("open breaker should reject calls")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, 2, time.Minute)
	now := time.Now()

	b.Failure(now)
	b.Failure(now)
	b.Success()
	b.Failure(now)
	b.Failure(now)

	// the success broke the run of consecutive failures
	if b.State() != Closed {
		t.Fatalf("breaker should be Closed, not %s", b.State())
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := NewBreaker(1, 2, time.Minute)
	now := time.Now()

	b.Failure(now)
	if b.Allow(now.Add(30 * time.Second)) {
		t.Fatal("breaker should reject during the cooldown")
	}

	if !b.Allow(now.Add(time.Minute)) {
		t.Fatal("breaker should allow a probe after the cooldown")
	}
	if b.State() != HalfOpen {
		t.Fatalf("breaker should be HalfOpen, not %s", b.State())
	}
}

func TestBreakerClosesAfterConsecutiveSuccesses(t *testing.T) {
	b := NewBreaker(1, 2, time.Minute)
	now := time.Now()

	b.Failure(now)
	b.Allow(now.Add(time.Minute))

	// one probe success is not enough
	b.Success()
	if b.State() != HalfOpen {
		t.Fatalf("breaker should still be HalfOpen after 1 success, not %s", b.State())
	}

	b.Success()
	if b.State() != Closed {
		t.Fatalf("breaker should be Closed after 2 successes, not %s", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := NewBreaker(1, 2, time.Minute)
	now := time.Now()

	b.Failure(now)
	b.Allow(now.Add(time.Minute))
	b.Success()

	// a failure mid-probe reopens immediately and resets the success run
	later := now.Add(2 * time.Minute)
	b.Failure(later)
	if b.State() != Open {
		t.Fatalf("breaker should reopen on a half-open failure, not %s", b.State())
	}
	if b.Allow(later.Add(30 * time.Second)) {
		t.Fatal("cooldown should restart from the half-open failure")
	}
}
