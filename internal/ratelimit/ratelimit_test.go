package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireBurstThenSpacing(t *testing.T) {
	lim := New(BucketConfig{Capacity: 3, RefillPerSecond: 20}, nil)
	ctx := context.Background()

	// First three acquisitions drain the initial burst without waiting.
	for i := 0; i < 3; i++ {
		waited, err := lim.Acquire(ctx, "example.com")
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if waited != 0 {
			t.Fatalf("Acquire %d waited %s, want immediate", i, waited)
		}
	}

	// Subsequent acquisitions pace at the refill rate (50ms per token).
	for i := 0; i < 3; i++ {
		waited, err := lim.Acquire(ctx, "example.com")
		if err != nil {
			t.Fatalf("paced Acquire %d: %v", i, err)
		}
		if waited < 25*time.Millisecond {
			t.Fatalf("paced Acquire %d waited only %s", i, waited)
		}
	}
}

func TestAcquireKeysAreIndependent(t *testing.T) {
	lim := New(BucketConfig{Capacity: 1, RefillPerSecond: 0.001}, nil)
	ctx := context.Background()

	if _, err := lim.Acquire(ctx, "a.example"); err != nil {
		t.Fatalf("Acquire a.example: %v", err)
	}
	// Draining a.example must not affect b.example's bucket.
	waited, err := lim.Acquire(ctx, "b.example")
	if err != nil {
		t.Fatalf("Acquire b.example: %v", err)
	}
	if waited != 0 {
		t.Fatalf("b.example waited %s despite fresh bucket", waited)
	}
}

func TestAcquireMaxWaitExceeded(t *testing.T) {
	lim := New(BucketConfig{Capacity: 1, RefillPerSecond: 0.1, MaxWait: 10 * time.Millisecond}, nil)
	ctx := context.Background()

	if _, err := lim.Acquire(ctx, "slow.example"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	_, err := lim.Acquire(ctx, "slow.example")
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
}

func TestAcquirePerKeyOverride(t *testing.T) {
	lim := New(
		BucketConfig{Capacity: 1, RefillPerSecond: 1},
		map[string]BucketConfig{"big.example": {Capacity: 5, RefillPerSecond: 1}},
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		waited, err := lim.Acquire(ctx, "big.example")
		if err != nil {
			t.Fatalf("override Acquire %d: %v", i, err)
		}
		if waited != 0 {
			t.Fatalf("override Acquire %d waited %s", i, waited)
		}
	}
}

func TestAcquireContextCancelledWhileWaiting(t *testing.T) {
	lim := New(BucketConfig{Capacity: 1, RefillPerSecond: 0.5}, nil)
	if _, err := lim.Acquire(context.Background(), "k"); err != nil {
		t.Fatalf("drain: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := lim.Acquire(ctx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestAcquireCostBeyondCapacity(t *testing.T) {
	lim := New(BucketConfig{Capacity: 2, RefillPerSecond: 1}, nil)
	if _, err := lim.AcquireN(context.Background(), "k", 3); err == nil {
		t.Fatalf("expected error acquiring beyond capacity")
	}
}
