package token

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

// IssuerConfig controls token identity and lifetimes.
type IssuerConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer mints access and refresh tokens for principals.
type Issuer struct {
	codec      *Codec
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// NewIssuer constructs an issuer. An empty issuer name falls back to the host name.
func NewIssuer(codec *Codec, cfg IssuerConfig) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("token: codec required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: access and refresh TTL must be positive")
	}
	name := cfg.Issuer
	if name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "dealer-iam"
		}
		name = host
	}
	return &Issuer{
		codec:      codec,
		issuer:     name,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        codec.now,
		newID:      uuid.NewString,
	}, nil
}

// Name returns the issuer claim written into every token.
func (i *Issuer) Name() string {
	return i.issuer
}

// Issue signs a token of the given kind for the principal.
func (i *Issuer) Issue(p shared.Principal, kind Kind, ttl time.Duration) (Token, error) {
	if p.ID == "" {
		return Token{}, errors.New("token: principal id required")
	}
	if ttl <= 0 {
		return Token{}, errors.New("token: ttl must be positive")
	}
	now := i.now()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   p.ID,
			ID:        i.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	// refresh tokens identify the subject only
	if kind != KindRefresh {
		claims.Name = p.Name
		claims.Roles = append([]string(nil), p.Roles...)
	}
	signed, err := i.codec.Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("issue %s token: %w", kind, err)
	}
	return Token{Value: signed, Claims: claims, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// IssueAccess signs an access token with the configured lifetime.
func (i *Issuer) IssueAccess(p shared.Principal) (Token, error) {
	return i.Issue(p, KindAccess, i.accessTTL)
}

// IssuePair signs an access and a refresh token for the principal.
func (i *Issuer) IssuePair(p shared.Principal) (Pair, error) {
	access, err := i.Issue(p, KindAccess, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.Issue(p, KindRefresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}
