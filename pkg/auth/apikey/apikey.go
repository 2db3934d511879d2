// Package apikey provides an API key authenticator that validates
// bearer tokens or an API key header against a static key store using
// SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/rhuss/kette/pkg/api"
	"github.com/rhuss/kette/pkg/auth"
)

// HeaderName is the alternative header carrying a raw API key.
const HeaderName = "X-API-Key"

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// Authenticate looks for a key in the Authorization bearer token, then in
// the X-API-Key header. Returns Yes if valid, No if a key is present but
// unknown, Abstain if the request carries no key.
func (a *Authenticator) Authenticate(_ context.Context, req *api.Request) auth.AuthResult {
	key, ok := auth.BearerToken(req)
	if !ok && req.Header != nil {
		if v := req.Header.Get(HeaderName); v != "" {
			key, ok = v, true
		}
	}
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if key == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	keyHash := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.KeyHash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
