package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func encodePEM(t *testing.T, priv any) (privPEM, pubPEM []byte) {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	var pub any
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		pub = &k.PublicKey
	case ed25519.PrivateKey:
		pub = k.Public()
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func newEdKeys(t *testing.T) KeyPair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return KeyPair{Private: priv, Public: priv.Public()}
}

func newTestTokens(t *testing.T, clock *fakeClock) (*Issuer, *Validator) {
	t.Helper()
	codec, err := NewCodec(newEdKeys(t), WithClock(clock.Now))
	require.NoError(t, err)
	issuer, err := NewIssuer(codec, IssuerConfig{Issuer: "iam-test", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	require.NoError(t, err)
	return issuer, NewValidator(codec)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	issuer, validator := newTestTokens(t, clock)
	principal := shared.Principal{ID: "u-1", Name: "Ada", Roles: []string{"admin", "customer"}}

	tok, err := issuer.IssueAccess(principal)
	require.NoError(t, err)
	assert.True(t, clock.t.Add(time.Hour).Equal(tok.ExpiresAt))

	claims, err := validator.IsValid(tok.Value, "u-1")
	require.NoError(t, err)
	assert.Equal(t, principal, claims.Principal())
	assert.Equal(t, "iam-test", claims.Issuer)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.NotEmpty(t, claims.ID)
}

func TestIssuePairProducesDistinctKinds(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	issuer, validator := newTestTokens(t, clock)

	pair, err := issuer.IssuePair(shared.Principal{ID: "u-1"})
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access.Claims.ID, pair.Refresh.Claims.ID)
	assert.True(t, pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt))

	_, err = validator.ValidateKind(pair.Refresh.Value, "u-1", KindRefresh)
	require.NoError(t, err)
	_, err = validator.ValidateKind(pair.Access.Value, "u-1", KindRefresh)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = validator.ValidateKind(pair.Refresh.Value, "", KindAccess)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestRefreshTokenCarriesNoAuthorizationClaims(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	issuer, validator := newTestTokens(t, clock)

	pair, err := issuer.IssuePair(shared.Principal{ID: "u-1", Name: "Ada", Roles: []string{"super admin"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"super admin"}, pair.Access.Claims.Roles)
	assert.Equal(t, "Ada", pair.Access.Claims.Name)

	claims, err := validator.ValidateKind(pair.Refresh.Value, "u-1", KindRefresh)
	require.NoError(t, err)
	assert.Empty(t, claims.Name)
	assert.Empty(t, claims.Roles)
	assert.NotEmpty(t, claims.ID)

	payload, err := jwt.NewParser().DecodeSegment(strings.Split(pair.Refresh.Value, ".")[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), `"roles"`)
	assert.NotContains(t, string(payload), `"name"`)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	issuer, validator := newTestTokens(t, clock)

	tok, err := issuer.Issue(shared.Principal{ID: "u-1"}, KindAccess, time.Second)
	require.NoError(t, err)
	_, err = validator.Validate(tok.Value)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = validator.Validate(tok.Value)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	claims, err := validator.Identify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestMillisecondTTLExpiresOnWallClock(t *testing.T) {
	codec, err := NewCodec(newEdKeys(t))
	require.NoError(t, err)
	issuer, err := NewIssuer(codec, IssuerConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)

	tok, err := issuer.Issue(shared.Principal{ID: "u-1"}, KindAccess, time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = NewValidator(codec).Validate(tok.Value)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSubjectBinding(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	issuer, validator := newTestTokens(t, clock)

	tok, err := issuer.IssueAccess(shared.Principal{ID: "u-1"})
	require.NoError(t, err)
	_, err = validator.IsValid(tok.Value, "u-2")
	assert.ErrorIs(t, err, ErrSubjectMismatch)
}

func TestTamperedAndForeignTokensAreMalformed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	issuer, validator := newTestTokens(t, clock)
	tok, err := issuer.IssueAccess(shared.Principal{ID: "u-1", Roles: []string{"customer"}})
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	forged := &Claims{Roles: []string{"super admin"}, Kind: KindAccess, RegisteredClaims: tok.Claims.RegisteredClaims}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, forged).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	payload := strings.Split(unsigned, ".")[1]

	otherIssuer, _ := newTestTokens(t, clock)
	foreign, err := otherIssuer.IssueAccess(shared.Principal{ID: "u-1"})
	require.NoError(t, err)

	cases := map[string]string{
		"empty":            "",
		"garbage":          "not-a-token",
		"payload swapped":  parts[0] + "." + payload + "." + parts[2],
		"none algorithm":   unsigned,
		"foreign key pair": foreign.Value,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := validator.Validate(raw)
			assert.ErrorIs(t, err, ErrMalformed)
			_, err = validator.Identify(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseKeyPairSelectsAlgorithm(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rsaPriv, rsaPub := encodePEM(t, rsaKey)
	edPriv, edPub := encodePEM(t, edKey)

	keys, err := ParseKeyPair(rsaPriv, rsaPub)
	require.NoError(t, err)
	codec, err := NewCodec(keys)
	require.NoError(t, err)
	assert.Equal(t, "RS256", codec.Algorithm())

	keys, err = ParseKeyPair(edPriv, nil)
	require.NoError(t, err)
	codec, err = NewCodec(keys)
	require.NoError(t, err)
	assert.Equal(t, "EdDSA", codec.Algorithm())

	verifyOnly, err := ParseKeyPair(nil, edPub)
	require.NoError(t, err)
	assert.Nil(t, verifyOnly.Private)
	verifier, err := NewCodec(verifyOnly)
	require.NoError(t, err)
	issuer, err := NewIssuer(codec, IssuerConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	tok, err := issuer.IssueAccess(shared.Principal{ID: "u-9"})
	require.NoError(t, err)
	_, err = NewValidator(verifier).IsValid(tok.Value, "u-9")
	require.NoError(t, err)
	_, err = verifier.Sign(tok.Claims)
	assert.Error(t, err)

	_, err = ParseKeyPair(rsaPriv, edPub)
	assert.Error(t, err)
	_, err = ParseKeyPair(nil, nil)
	assert.Error(t, err)
	_, err = ParseKeyPair([]byte("garbage"), nil)
	assert.Error(t, err)
}

func TestIssueRejectsInvalidInput(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	issuer, _ := newTestTokens(t, clock)

	_, err := issuer.Issue(shared.Principal{}, KindAccess, time.Minute)
	assert.Error(t, err)
	_, err = issuer.Issue(shared.Principal{ID: "u-1"}, KindAccess, 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrUnauthorized))
}
