package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/garyjia/school-fees/internal/domain/entity"
)

// Claims is the payload of a bearer token
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Bearer resolves HS256 JWTs from the Authorization header
type Bearer struct {
	secret []byte
	issuer string
}

// NewBearer creates a bearer token resolver
func NewBearer(secret, issuer string) *Bearer {
	return &Bearer{secret: []byte(secret), issuer: issuer}
}

// Resolve implements Resolver
func (b *Bearer) Resolve(r *http.Request) (*entity.Caller, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, nil
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if b.issuer != "" && !claims.VerifyIssuer(b.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCredentials, claims.Issuer)
	}

	return newCaller(claims.Subject, claims.Role, claims.Name)
}

// IssueToken signs a token for caller valid for ttl
func (b *Bearer) IssueToken(caller entity.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: caller.Role,
		Name: caller.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			Issuer:    b.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}
