package infra

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := NewRedis(ctx, "127.0.0.1:1")
	if err == nil {
		_ = client.Close()
		t.Fatal("expected an error for an unreachable address")
	}
	if client != nil {
		t.Fatal("expected no client on failure")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Fatalf("error should name the address: %v", err)
	}
}
