package auth

import (
	"context"
	"errors"
	"testing"
)

func TestInProcessLimiter(t *testing.T) {
	limiter := NewInProcessLimiter(map[string]TierConfig{
		"basic":     {RequestsPerMinute: 3},
		"unlimited": {RequestsPerMinute: 0},
	}, 1)

	tests := []struct {
		name    string
		id      *Identity
		allowed int
	}{
		{"basic tier", &Identity{Subject: "alice", ServiceTier: "basic"}, 3},
		{"default tier", &Identity{Subject: "bob"}, 1},
		{"unknown tier uses default", &Identity{Subject: "carol", ServiceTier: "mystery"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < tt.allowed; i++ {
				if err := limiter.Allow(context.Background(), tt.id); err != nil {
					t.Fatalf("request %d rejected: %v", i+1, err)
				}
			}
			if err := limiter.Allow(context.Background(), tt.id); !errors.Is(err, ErrTooManyRequests) {
				t.Errorf("request %d: err = %v, want ErrTooManyRequests", tt.allowed+1, err)
			}
		})
	}

	t.Run("unlimited tier", func(t *testing.T) {
		id := &Identity{Subject: "dave", ServiceTier: "unlimited"}
		for i := 0; i < 50; i++ {
			if err := limiter.Allow(context.Background(), id); err != nil {
				t.Fatalf("request %d rejected: %v", i+1, err)
			}
		}
	})
}

func TestInProcessLimiter_SeparateSubjects(t *testing.T) {
	limiter := NewInProcessLimiter(nil, 1)
	ctx := context.Background()

	if err := limiter.Allow(ctx, &Identity{Subject: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Allow(ctx, &Identity{Subject: "bob"}); err != nil {
		t.Errorf("bob shares alice's bucket: %v", err)
	}
	if err := limiter.Allow(ctx, &Identity{Subject: "alice"}); err == nil {
		t.Error("alice should be limited")
	}
}
