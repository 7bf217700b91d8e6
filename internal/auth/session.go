package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

// DefaultSessionCookie is the cookie the portal writes its session token to
const DefaultSessionCookie = "session_token"

// Session resolves a session cookie through the session store
type Session struct {
	store  port.SessionStore
	cookie string
}

// NewSession creates a cookie session resolver
func NewSession(store port.SessionStore, cookie string) *Session {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return &Session{store: store, cookie: cookie}
}

// Resolve implements Resolver. An unknown token is rejected rather than ignored.
func (s *Session) Resolve(r *http.Request) (*entity.Caller, error) {
	c, err := r.Cookie(s.cookie)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sess, err := s.store.Get(r.Context(), c.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: unknown session", ErrInvalidCredentials)
	}
	return newCaller(sess.UserID, sess.Role, sess.Name)
}
