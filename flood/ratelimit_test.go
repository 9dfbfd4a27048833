package flood

import (
	"testing"
	"time"
)

func TestTokenBucketAllowsBurst(t *testing.T) {
	b := newTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected burst token %d to be allowed", i)
		}
	}
	if b.Allow() {
		t.Fatal("expected burst to be exhausted after 3 immediate allows")
	}
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	b := newTokenBucket(1000, 1)
	if !b.Allow() {
		t.Fatal("expected first token to be allowed")
	}
	if b.Allow() {
		t.Fatal("expected bucket to be empty right after consuming its one token")
	}

	time.Sleep(5 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected a refilled token after waiting past the refill rate")
	}
}
