// Package auth resolves the identity of a gateway caller.
package auth

import (
	"context"
	"errors"
)

// Anonymous is the identity used when authentication is disabled.
const Anonymous = "anonymous"

// Authentication modes.
const (
	ModeNone  = "none"
	ModeBasic = "basic"
	ModeJWT   = "jwt"
)

// ErrUnauthorized is returned for missing or rejected credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller threaded through a request.
type Identity struct {
	Name   string `json:"name"`
	Method string `json:"method"`
}

type contextKey string

const identityKey contextKey = "identity"

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// NameFromContext returns the identity name, or Anonymous.
func NameFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.Name != "" {
		return id.Name
	}
	return Anonymous
}
