// Package auth resolves the caller of an HTTP request to a user id. A
// Verifier inspects the request; Middleware stores the result in both the gin
// context and the request context, where ContextGate reads it back for the
// service layer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sickco/sickco-backend/internal/config"
)

// MaxUserIDLen is the longest user id any verifier accepts; it matches the
// width of the user_id columns.
const MaxUserIDLen = 64

// ContextKey is the gin context key holding the authenticated user id.
const ContextKey = "userID"

var (
	// ErrMissingCredentials is returned when the request carries no
	// credentials at all.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials is returned for malformed, expired or
	// otherwise unacceptable credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoUser is returned by ContextGate when no user was resolved for
	// the request.
	ErrNoUser = errors.New("no authenticated user")
)

// Verifier resolves a request to a non-empty user id.
type Verifier interface {
	Verify(r *http.Request) (string, error)
}

// New returns the verifier selected by cfg.Mode.
func New(cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "jwt":
		v, err := NewJWTVerifier(cfg.JWTSecret, cfg.Audience, cfg.Issuer)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "header":
		return HeaderVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

type userKey struct{}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the user id stored in ctx, if any.
func UserFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userKey{}).(string)
	return uid, ok && uid != ""
}

// ContextGate reads the user resolved by Middleware from the context.
type ContextGate struct{}

// RequireUser returns the authenticated user id or ErrNoUser.
func (ContextGate) RequireUser(ctx context.Context) (string, error) {
	if uid, ok := UserFrom(ctx); ok {
		return uid, nil
	}
	return "", ErrNoUser
}

// Middleware authenticates every request with v. On failure it calls deny
// and aborts; deny is expected to write the response.
func Middleware(v Verifier, deny func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := v.Verify(c.Request)
		if err == nil && strings.TrimSpace(uid) == "" {
			err = ErrInvalidCredentials
		}
		if err != nil {
			deny(c, err)
			c.Abort()
			return
		}
		c.Set(ContextKey, uid)
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), uid))
		c.Next()
	}
}
