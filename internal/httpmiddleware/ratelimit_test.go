package httpmiddleware

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewTokenBucket(3, 60)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "10.0.0.1") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if l.Allow(ctx, "10.0.0.1") {
		t.Fatal("request past capacity should be rejected")
	}
	// A different client has its own bucket.
	if !l.Allow(ctx, "10.0.0.2") {
		t.Fatal("independent key should pass")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "10.0.0.1")
	l.Allow(ctx, "10.0.0.1")
	if l.Allow(ctx, "10.0.0.1") {
		t.Fatal("bucket should be empty")
	}

	now = now.Add(2 * time.Second) // 60/min refills one token every second
	if !l.Allow(ctx, "10.0.0.1") {
		t.Fatal("bucket should have refilled")
	}
}
