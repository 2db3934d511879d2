package auth

import "github.com/rhuss/kette/pkg/api"

// IdentityKey is the request annotation holding the authenticated identity.
const IdentityKey = "auth.identity"

// IdentityFromRequest returns the identity stored on req by Middleware,
// or nil.
func IdentityFromRequest(req *api.Request) *Identity {
	v, ok := req.Value(IdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
