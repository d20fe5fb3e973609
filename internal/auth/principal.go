package auth

import (
	"context"
	"time"
)

// Principal is the signed-in identity behind a request. It carries no role.
type Principal struct {
	ID        string
	Name      string
	Email     string
	Anonymous bool
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) Authenticated() bool {
	return p.ID != ""
}

// Provider turns a bearer credential into a Principal.
type Provider interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

type RevocationChecker interface {
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// NativeProvider verifies access tokens issued by this service.
type NativeProvider struct {
	secret  []byte
	revoked RevocationChecker
}

func NewNativeProvider(secret string, revoked RevocationChecker) *NativeProvider {
	return &NativeProvider{secret: []byte(secret), revoked: revoked}
}

func (p *NativeProvider) Verify(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseToken(p.secret, token)
	if err != nil {
		return Principal{}, err
	}
	if p.revoked != nil {
		revoked, err := p.revoked.IsAccessTokenRevoked(ctx, claims.JTI)
		if err != nil {
			return Principal{}, err
		}
		if revoked {
			return Principal{}, ErrInvalidToken
		}
	}
	return Principal{
		ID:        claims.Sub,
		Name:      claims.Name,
		Anonymous: claims.Anonymous,
		TokenID:   claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}
