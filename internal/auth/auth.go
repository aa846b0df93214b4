// Package auth gates streaming connections: it extracts a bearer credential
// from the connection URI's query string and resolves it to a session
// identity before any audio flows. Authentication here is advisory — a
// missing or invalid credential degrades to an anonymous identity, never a
// rejected connection. Fine-grained authorization belongs downstream.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"time"
)

// TokenParam is the query-string parameter carrying the bearer credential.
const TokenParam = "access_token"

// DefaultResolveTimeout bounds credential resolution so a stalled identity
// store cannot stall the accept path.
const DefaultResolveTimeout = 3 * time.Second

// Identity is the principal attached to a streaming session. Exactly one of
// "resolved principal" or "anonymous" holds; code downstream never branches
// on a missing identity.
type Identity struct {
	Subject   string
	Name      string
	Anonymous bool
}

// Anonymous returns the explicit fallback identity.
func Anonymous() Identity {
	return Identity{Anonymous: true}
}

// Resolver looks up a bearer credential against an external identity store.
// A nil error with a zero Subject is treated the same as an error: no
// principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Authenticator resolves connection credentials. It never returns an error:
// resolver failures are swallowed and logged, and the session proceeds
// anonymously.
type Authenticator struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

func NewAuthenticator(resolver Resolver, timeout time.Duration, log *slog.Logger) *Authenticator {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Authenticator{
		resolver: resolver,
		timeout:  timeout,
		logger:   log.With(slog.String("component", "auth")),
	}
}

// Authenticate extracts the access token from a connection's raw query
// string and resolves it. An absent or empty token yields the anonymous
// identity without touching the resolver.
func (a *Authenticator) Authenticate(ctx context.Context, rawQuery string) Identity {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		a.logger.Warn("malformed connection query string", slog.String("error", err.Error()))
		return Anonymous()
	}
	token := values.Get(TokenParam)
	if token == "" || a.resolver == nil {
		return Anonymous()
	}

	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	identity, err := a.resolver.Resolve(rctx, token)
	if err != nil {
		a.logger.Warn("credential resolution failed", slog.String("error", err.Error()))
		return Anonymous()
	}
	if identity.Anonymous || identity.Subject == "" {
		return Anonymous()
	}
	return identity
}

type contextKey struct{}

// WithIdentity attaches the resolved identity to a connection-scoped context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by WithIdentity, or the
// anonymous identity when none is present.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
