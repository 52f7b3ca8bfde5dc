// Package auth verifies bearer tokens presented to the plan API.
//
// The service consumes token verification as a gate: a request either
// carries a verifiable credential and proceeds with its claims attached,
// or it is rejected before any store access happens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential indicates the Authorization header was absent
	// or not a well-formed bearer scheme. Maps to 401.
	ErrMissingCredential = errors.New("missing or malformed credential")

	// ErrInvalidCredential indicates a present credential that failed
	// verification (bad signature, expired, wrong issuer). Maps to 403.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Claims are the verified identity attributes attached to a request.
type Claims struct {
	Subject string
	Issuer  string
}

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// JWTVerifier verifies HMAC-signed JWTs against a shared secret and an
// expected issuer. It stands in for an external identity provider; swapping
// in a remote verifier only requires another Verifier implementation.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for HS256 tokens.
func NewJWTVerifier(secret []byte, issuer string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &JWTVerifier{
		secret: secret,
		issuer: issuer,
	}, nil
}

// Verify parses and validates the token. Expiry and issuer are enforced;
// any failure is reported as ErrInvalidCredential without leaking the
// underlying parser detail to clients (it stays available via Unwrap for
// logging).
func (v *JWTVerifier) Verify(_ context.Context, token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	registered, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return Claims{}, ErrInvalidCredential
	}

	return Claims{
		Subject: registered.Subject,
		Issuer:  registered.Issuer,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
// Returns ErrMissingCredential when the header is absent or does not use
// the bearer scheme.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingCredential
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}
