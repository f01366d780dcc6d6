package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/darkden-lab/ozone/internal/config"
)

// Authenticator resolves the identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// NewAuthenticator builds the authenticator for cfg.Mode.
func NewAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case ModeNone, "":
		return noneAuth{}, nil
	case ModeBasic:
		return &BasicAuth{Users: NewUsers(cfg.Users)}, nil
	case ModeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("jwt mode requires auth.jwt_secret")
		}
		return &BearerAuth{JWT: NewJWTService(cfg.JWTSecret, cfg.TokenTTL)}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

type noneAuth struct{}

func (noneAuth) Authenticate(*http.Request) (Identity, error) {
	return Identity{Name: Anonymous, Method: ModeNone}, nil
}

// BasicAuth checks HTTP basic credentials against Users.
type BasicAuth struct {
	Users *Users
}

func (b *BasicAuth) Authenticate(r *http.Request) (Identity, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing basic credentials", ErrUnauthorized)
	}
	if !b.Users.Verify(user, pass) {
		return Identity{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return Identity{Name: strings.ToLower(user), Method: ModeBasic}, nil
}

// BearerAuth validates "Authorization: Bearer <jwt>".
type BearerAuth struct {
	JWT *JWTService
}

func (b *BearerAuth) Authenticate(r *http.Request) (Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, fmt.Errorf("%w: missing authorization header", ErrUnauthorized)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, fmt.Errorf("%w: invalid authorization header format", ErrUnauthorized)
	}

	claims, err := b.JWT.ValidateToken(parts[1])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	return Identity{Name: claims.Username, Method: ModeJWT}, nil
}
