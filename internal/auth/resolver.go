package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// JWTResolver validates HS256 access tokens locally. Claims: "sub"
// (required), "name" (optional), "exp" enforced by the parser.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, r.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, errors.New("invalid access token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, errors.New("access token has no sub claim")
	}
	name, _ := claims["name"].(string)
	return Identity{Subject: sub, Name: name}, nil
}

func (r *JWTResolver) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return r.secret, nil
}

// StaticResolver resolves tokens from a fixed table. Intended for tests and
// local development.
type StaticResolver struct {
	tokens map[string]Identity
}

func NewStaticResolver(tokens map[string]Identity) *StaticResolver {
	return &StaticResolver{tokens: tokens}
}

func (r *StaticResolver) Resolve(_ context.Context, token string) (Identity, error) {
	id, ok := r.tokens[token]
	if !ok {
		return Identity{}, errors.New("unknown token")
	}
	return id, nil
}
