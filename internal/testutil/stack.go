// Package testutil provides testing utilities for the plan API.
package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/planvault/planvault/internal/api"
	"github.com/planvault/planvault/pkg/auth"
	"github.com/planvault/planvault/pkg/plan"
	"github.com/planvault/planvault/pkg/schema"
	"github.com/planvault/planvault/pkg/store"
)

// TestIssuer is the issuer baked into stack-issued tokens.
const TestIssuer = "planvault-test"

// Stack is a fully wired in-process plan API: miniredis-backed store,
// embedded schema validator, JWT verifier and router.
type Stack struct {
	Handler http.Handler
	Store   *store.RedisStore
	Secret  []byte
}

// NewStack builds a test stack. The miniredis instance and Redis client
// are cleaned up with the test.
func NewStack(t *testing.T) *Stack {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStackWithRedis(t, client)
}

// NewStackWithRedis builds a test stack on an existing Redis client, so
// integration tests can point it at a containerized server.
func NewStackWithRedis(t *testing.T, client *redis.Client) *Stack {
	t.Helper()

	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	st := store.NewRedisStore(client)
	svc, err := plan.NewService(st, validator)
	if err != nil {
		t.Fatalf("create plan service: %v", err)
	}

	secret := []byte("stack-test-secret")
	verifier, err := auth.NewJWTVerifier(secret, TestIssuer)
	if err != nil {
		t.Fatalf("create verifier: %v", err)
	}

	return &Stack{
		Handler: api.NewServer(svc, verifier, st, api.Config{}),
		Store:   st,
		Secret:  secret,
	}
}

// Token issues a bearer token the stack's verifier accepts.
func (s *Stack) Token(t *testing.T, subject string) string {
	t.Helper()
	return SignToken(t, s.Secret, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    TestIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
}

// ExpiredToken issues a token the stack's verifier rejects.
func (s *Stack) ExpiredToken(t *testing.T) string {
	t.Helper()
	return SignToken(t, s.Secret, jwt.RegisteredClaims{
		Subject:   "expired",
		Issuer:    TestIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
}

// SignToken signs arbitrary registered claims with HS256.
func SignToken(t *testing.T, secret []byte, claims jwt.RegisteredClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
