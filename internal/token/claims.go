// Package token issues and validates the signed bearer tokens of the service.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed covers undecodable, unsigned, wrongly signed and not-yet-valid tokens.
	ErrMalformed = &shared.Error{Kind: shared.ErrUnauthorized, Message: "token is malformed or has an invalid signature"}
	// ErrExpired reports a well-formed token past its expiry.
	ErrExpired = &shared.Error{Kind: shared.ErrUnauthorized, Message: "token has expired"}
	// ErrSubjectMismatch reports a valid token issued to a different subject.
	ErrSubjectMismatch = &shared.Error{Kind: shared.ErrUnauthorized, Message: "token subject does not match"}
	// ErrWrongKind reports an access token used as a refresh token or vice versa.
	ErrWrongKind = &shared.Error{Kind: shared.ErrUnauthorized, Message: "token cannot be used for this operation"}
)

// Claims is the payload carried by every token.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Kind  Kind     `json:"token_use"`
	jwt.RegisteredClaims
}

// ExpiresAtTime returns the expiry instant or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Principal rebuilds the authenticated identity carried by the claims.
func (c *Claims) Principal() shared.Principal {
	roles := make([]string, len(c.Roles))
	copy(roles, c.Roles)
	return shared.Principal{ID: c.Subject, Name: c.Name, Roles: roles}
}

// Token is a signed token together with its decoded claims.
type Token struct {
	Value     string
	Claims    *Claims
	ExpiresAt time.Time
}

// Pair is what register and login hand out.
type Pair struct {
	Access  Token
	Refresh Token
}
