// Package auth resolves the caller of an HTTP request from its credentials.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/garyjia/school-fees/internal/domain/entity"
)

// ErrInvalidCredentials is wrapped when a request carries credentials that
// are malformed, expired or name an unknown role.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Resolver identifies the caller of a request. It returns (nil, nil) when the
// request carries no credentials it understands.
type Resolver interface {
	Resolve(r *http.Request) (*entity.Caller, error)
}

// Chain tries resolvers in order; the first one returning a caller or an error wins
type Chain []Resolver

// Resolve implements Resolver
func (c Chain) Resolve(r *http.Request) (*entity.Caller, error) {
	for _, resolver := range c {
		caller, err := resolver.Resolve(r)
		if err != nil {
			return nil, err
		}
		if caller != nil {
			return caller, nil
		}
	}
	return nil, nil
}

func newCaller(id, role, name string) (*entity.Caller, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredentials)
	}
	if !entity.IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidCredentials, role)
	}
	return &entity.Caller{ID: id, Role: role, Name: name}, nil
}
