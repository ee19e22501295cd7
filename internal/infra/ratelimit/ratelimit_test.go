package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestLocalLimiterWindow(t *testing.T) {
	clock := time.Unix(1000, 0)
	l := NewLocalLimiter(time.Minute)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "seeker-1", 3, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "seeker-1", 3, time.Minute) {
		t.Fatal("fourth request inside the window should be rejected")
	}
	if !l.Allow(ctx, "seeker-2", 3, time.Minute) {
		t.Fatal("other keys must have their own bucket")
	}

	clock = clock.Add(20 * time.Second)
	if !l.Allow(ctx, "seeker-1", 3, time.Minute) {
		t.Fatal("one token should have refilled after a third of the window")
	}
}

func TestLocalLimiterIgnoresEmptyKey(t *testing.T) {
	l := NewLocalLimiter(0)
	for i := 0; i < 10; i++ {
		if !l.Allow(context.Background(), " ", 1, time.Minute) {
			t.Fatal("empty keys are not limited")
		}
	}
}

func TestRedisLimiterIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR must be set to run this test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLimiter(client, "it:"+uuid.NewString()+":", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if !l.Allow(ctx, "k", 2, time.Minute) || !l.Allow(ctx, "k", 2, time.Minute) {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow(ctx, "k", 2, time.Minute) {
		t.Fatal("third request should be rejected")
	}
}
