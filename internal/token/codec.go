package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies tokens with an asymmetric key pair.
type Codec struct {
	method jwt.SigningMethod
	keys   KeyPair
	now    func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec; RSA keys sign with RS256 and Ed25519 keys with EdDSA.
func NewCodec(keys KeyPair, opts ...CodecOption) (*Codec, error) {
	if keys.Public == nil {
		return nil, errors.New("token: public key required")
	}
	method, err := methodFor(keys.Public)
	if err != nil {
		return nil, err
	}
	c := &Codec{method: method, keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm reports the JWS algorithm in use.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Sign serialises and signs claims.
func (c *Codec) Sign(claims *Claims) (string, error) {
	if c.keys.Private == nil {
		return "", errors.New("token: codec has no private key")
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.keys.Private)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and every time-based claim.
func (c *Codec) Decode(raw string) (*Claims, error) {
	return c.decode(raw,
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
}

// DecodeIgnoringTime verifies the signature only.
func (c *Codec) DecodeIgnoringTime(raw string) (*Claims, error) {
	return c.decode(raw, jwt.WithoutClaimsValidation())
}

func (c *Codec) decode(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	opts = append(opts, jwt.WithValidMethods([]string{c.method.Alg()}))
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.keys.Public, nil
	}, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
