package port

import "context"

// Session is a login record written by the external authentication provider
type Session struct {
	UserID string
	Role   string
	Name   string
}

// SessionStore looks up sessions by their cookie token.
// Get returns (nil, nil) for an unknown or expired token.
type SessionStore interface {
	Get(ctx context.Context, token string) (*Session, error)
}
