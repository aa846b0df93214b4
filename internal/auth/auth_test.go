package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingResolver struct {
	calls int
	id    Identity
	err   error
}

func (r *countingResolver) Resolve(context.Context, string) (Identity, error) {
	r.calls++
	return r.id, r.err
}

func TestAuthenticateNoToken(t *testing.T) {
	resolver := &countingResolver{id: Identity{Subject: "u1"}}
	a := NewAuthenticator(resolver, 0, newLogger())

	for _, query := range []string{"", "foo=bar", "access_token="} {
		id := a.Authenticate(context.Background(), query)
		if !id.Anonymous {
			t.Errorf("query %q: expected anonymous identity, got %+v", query, id)
		}
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver invoked %d times for credential-less connections", resolver.calls)
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	resolver := NewStaticResolver(map[string]Identity{
		"tok-1": {Subject: "user-7", Name: "Sam"},
	})
	a := NewAuthenticator(resolver, 0, newLogger())

	id := a.Authenticate(context.Background(), "access_token=tok-1")
	if id.Anonymous {
		t.Fatal("expected resolved identity")
	}
	if id.Subject != "user-7" || id.Name != "Sam" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticateResolverFailureDegradesToAnonymous(t *testing.T) {
	cases := []struct {
		name     string
		resolver Resolver
	}{
		{"error", &countingResolver{err: errors.New("identity store down")}},
		{"no subject", &countingResolver{id: Identity{}}},
		{"anonymous result", &countingResolver{id: Anonymous()}},
		{"unknown token", NewStaticResolver(nil)},
	}
	for _, tc := range cases {
		a := NewAuthenticator(tc.resolver, 0, newLogger())
		id := a.Authenticate(context.Background(), "access_token=whatever")
		if !id.Anonymous {
			t.Errorf("%s: expected anonymous fallback, got %+v", tc.name, id)
		}
	}
}

func TestAuthenticateMalformedQuery(t *testing.T) {
	a := NewAuthenticator(NewStaticResolver(nil), 0, newLogger())
	id := a.Authenticate(context.Background(), "a=%zz;b")
	if !id.Anonymous {
		t.Fatalf("expected anonymous for malformed query, got %+v", id)
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTResolver(t *testing.T) {
	r := NewJWTResolver("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":  "user-7",
		"name": "Sam",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	id, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Subject != "user-7" || id.Name != "Sam" || id.Anonymous {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestJWTResolverRejectsBadTokens(t *testing.T) {
	r := NewJWTResolver("secret")
	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{
			"sub": "user-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", signToken(t, "secret", jwt.MapClaims{
			"sub": "user-7",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing sub", signToken(t, "secret", jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
	}
	for _, tc := range cases {
		if _, err := r.Resolve(context.Background(), tc.token); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestJWTResolverRejectsWrongAlgorithm(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	r := NewJWTResolver("secret")
	if _, err := r.Resolve(context.Background(), signed); err == nil {
		t.Fatal("expected error for non-HS256 token")
	}
}

func TestIdentityContext(t *testing.T) {
	if id := FromContext(context.Background()); !id.Anonymous {
		t.Fatalf("expected anonymous from bare context, got %+v", id)
	}
	want := Identity{Subject: "user-7", Name: "Sam"}
	ctx := WithIdentity(context.Background(), want)
	if got := FromContext(ctx); got != want {
		t.Fatalf("FromContext = %+v, want %+v", got, want)
	}
}
