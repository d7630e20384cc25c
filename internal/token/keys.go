package token

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPair holds the signing material. Private may be nil for verify-only codecs.
type KeyPair struct {
	Private crypto.Signer
	Public  crypto.PublicKey
}

// ParseKeyPair decodes PEM encoded RSA or Ed25519 keys. When publicPEM is empty
// the public key is derived from the private key.
func ParseKeyPair(privatePEM, publicPEM []byte) (KeyPair, error) {
	var keys KeyPair
	if len(privatePEM) > 0 {
		priv, err := parsePrivateKey(privatePEM)
		if err != nil {
			return KeyPair{}, err
		}
		keys.Private = priv
		keys.Public = priv.Public()
	}
	if len(publicPEM) > 0 {
		pub, err := parsePublicKey(publicPEM)
		if err != nil {
			return KeyPair{}, err
		}
		if keys.Private != nil && !sameKeyType(keys.Private.Public(), pub) {
			return KeyPair{}, errors.New("token: public key type does not match private key")
		}
		keys.Public = pub
	}
	if keys.Public == nil {
		return KeyPair{}, errors.New("token: no key material configured")
	}
	return keys, nil
}

func parsePrivateKey(data []byte) (crypto.Signer, error) {
	if key, err := jwt.ParseRSAPrivateKeyFromPEM(data); err == nil {
		return key, nil
	}
	key, err := jwt.ParseEdPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("token: parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("token: unsupported private key %T", key)
	}
	return signer, nil
}

func parsePublicKey(data []byte) (crypto.PublicKey, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return key, nil
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("token: parse public key: %w", err)
	}
	return key, nil
}

func sameKeyType(a, b crypto.PublicKey) bool {
	switch a.(type) {
	case *rsa.PublicKey:
		_, ok := b.(*rsa.PublicKey)
		return ok
	case ed25519.PublicKey:
		_, ok := b.(ed25519.PublicKey)
		return ok
	}
	return false
}

// methodFor picks the JWS algorithm matching the key type.
func methodFor(pub crypto.PublicKey) (jwt.SigningMethod, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256, nil
	case ed25519.PublicKey:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("token: unsupported public key %T", pub)
	}
}
