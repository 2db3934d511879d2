// Package jwt provides a JWT/OIDC authenticator that validates bearer
// tokens either against a JWKS (JSON Web Key Set) endpoint or against a
// shared HMAC secret.
//
// Claim extraction for subject, tenant, scopes and service tier is
// configurable.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. Not validated when empty.
	Issuer string

	// Audience is the expected aud claim. Not validated when empty.
	Audience string

	// JWKSURL is the URL of the JSON Web Key Set used for RS* tokens.
	JWKSURL string

	// Secret enables HS256/HS384/HS512 verification with a shared key.
	// When set, JWKSURL is ignored.
	Secret []byte

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TenantClaim is the claim stored as tenant_id metadata. Default: "tenant_id".
	TenantClaim string

	// ScopesClaim holds authorization scopes, either a space-separated
	// string or a JSON array. Default: "scope".
	ScopesClaim string

	// TierClaim selects the rate limit tier. Default: "tier".
	TierClaim string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient is used to fetch the JWKS. Default: http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

var errEmptyToken = errors.New("empty bearer token")

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	keys   *jwksCache
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	a := &Authenticator{config: cfg}
	if len(cfg.Secret) == 0 {
		a.keys = newJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient)
	}
	return a
}

// Authenticate validates the bearer token of req.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(ctx context.Context, req *api.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(req)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: errEmptyToken}
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (any, error) {
		return a.verificationKey(ctx, token)
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("invalid JWT claims")}
	}

	identity, err := a.identity(claims)
	if err != nil {
		return auth.AuthResult{Decision: auth.No, Err: err}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: identity}
}

func (a *Authenticator) verificationKey(ctx context.Context, token *jwtlib.Token) (any, error) {
	if len(a.config.Secret) > 0 {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.Secret, nil
	}

	if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token missing kid header")
	}
	key, err := a.keys.getKey(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
	}
	return key, nil
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	methods := []string{"RS256", "RS384", "RS512"}
	if len(a.config.Secret) > 0 {
		methods = []string{"HS256", "HS384", "HS512"}
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods)}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	if a.config.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(a.config.Leeway))
	}
	return opts
}

func (a *Authenticator) identity(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return nil, fmt.Errorf("JWT missing %q claim", a.config.UserClaim)
	}

	id := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
		Scopes:      extractScopes(claims, a.config.ScopesClaim),
		Metadata:    make(map[string]string),
	}
	if tenant := claimString(claims, a.config.TenantClaim); tenant != "" {
		id.Metadata["tenant_id"] = tenant
	}
	return id, nil
}

// claimString returns the claim as a string, or "" when missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes accepts a space-separated string or a JSON array.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	var scopes []string
	switch v := claims[key].(type) {
	case string:
		scopes = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
	}
	if len(scopes) == 0 {
		return nil
	}
	return scopes
}
