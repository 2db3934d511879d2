package apikey

import (
	"context"
	"testing"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/auth"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{
			Key: "sk-test-key-1",
			Identity: auth.Identity{
				Subject:     "alice",
				ServiceTier: "standard",
				Metadata:    map[string]string{"tenant_id": "org-1"},
			},
		},
		{
			Key:      "sk-test-key-2",
			Identity: auth.Identity{Subject: "bob", ServiceTier: "premium"},
		},
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		value   string
		want    auth.AuthDecision
		subject string
	}{
		{"valid bearer", "Authorization", "Bearer sk-test-key-1", auth.Yes, "alice"},
		{"second key", "Authorization", "Bearer sk-test-key-2", auth.Yes, "bob"},
		{"api key header", HeaderName, "sk-test-key-2", auth.Yes, "bob"},
		{"invalid key", "Authorization", "Bearer sk-wrong", auth.No, ""},
		{"empty bearer", "Authorization", "Bearer ", auth.No, ""},
		{"basic scheme", "Authorization", "Basic dXNlcjpwYXNz", auth.Abstain, ""},
		{"no header", "", "", auth.Abstain, ""},
	}

	a := newTestAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := api.NewRequest("GET", "/")
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			result := a.Authenticate(context.Background(), req)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %v, want %v", result.Decision, tt.want)
			}
			if tt.subject != "" && result.Identity.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", result.Identity.Subject, tt.subject)
			}
		})
	}
}

func TestIdentityIsCopied(t *testing.T) {
	a := newTestAuth()
	req := api.NewRequest("GET", "/")
	req.Header.Set("Authorization", "Bearer sk-test-key-1")

	first := a.Authenticate(context.Background(), req)
	first.Identity.Subject = "mallory"

	second := a.Authenticate(context.Background(), req)
	if second.Identity.Subject != "alice" {
		t.Errorf("Subject = %q after mutation, want alice", second.Identity.Subject)
	}
	if second.Identity.TenantID() != "org-1" {
		t.Errorf("TenantID = %q, want org-1", second.Identity.TenantID())
	}
}
