// Package auth implements email/password accounts and the signed-in session
// that travels with each request.
package auth

import (
	"context"
	"time"
)

// Session is the identity of a signed-in account. It is created by SignIn
// and ends with SignOut or expiry.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token,omitempty"`
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFromContext returns the session stored in ctx, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Actor names whoever is acting in ctx, for logs and change events.
func Actor(ctx context.Context) string {
	if s, ok := SessionFromContext(ctx); ok {
		return s.Email
	}
	return "anonymous"
}
