package main

import (
	"fmt"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/auth"
	"github.com/rhuss/kette/pkg/auth/apikey"
	"github.com/rhuss/kette/pkg/auth/jwt"
	"github.com/rhuss/kette/pkg/auth/noop"
	"github.com/rhuss/kette/pkg/config"
)

// authMiddleware builds the request middleware for cfg.Auth.
func authMiddleware(cfg config.AuthConfig) (api.RequestMiddleware, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "none", "":
		authn = &noop.Authenticator{}
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entry := apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			}
			if k.TenantID != "" {
				entry.Identity.Metadata = map[string]string{"tenant_id": k.TenantID}
			}
			entries = append(entries, entry)
		}
		authn = apikey.New(entries)
	case "jwt":
		j := cfg.JWT
		authn = jwt.New(jwt.Config{
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			JWKSURL:     j.JWKSURL,
			Secret:      []byte(j.Secret),
			UserClaim:   j.UserClaim,
			TenantClaim: j.TenantClaim,
			ScopesClaim: j.ScopesClaim,
			TierClaim:   j.TierClaim,
			Leeway:      j.Leeway,
			CacheTTL:    j.CacheTTL,
		})
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.DefaultRPM > 0 || len(cfg.RateLimit.Tiers) > 0 {
		tiers := make(map[string]auth.TierConfig, len(cfg.RateLimit.Tiers))
		for name, rpm := range cfg.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.RateLimit.DefaultRPM)
	}

	bypass := cfg.Bypass
	if len(bypass) == 0 {
		bypass = auth.DefaultBypassEndpoints
	}

	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{authn}, DefaultDecision: auth.No}
	return auth.Middleware(chain, limiter, bypass), nil
}
