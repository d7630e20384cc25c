package token

// Validator checks tokens produced by an Issuer sharing the same key pair.
type Validator struct {
	codec *Codec
}

// NewValidator wraps the codec.
func NewValidator(codec *Codec) *Validator {
	return &Validator{codec: codec}
}

// Validate decodes the token and checks its signature and lifetime.
func (v *Validator) Validate(raw string) (*Claims, error) {
	claims, err := v.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// IsValid is Validate plus a check that the token belongs to subject.
func (v *Validator) IsValid(raw, subject string) (*Claims, error) {
	claims, err := v.Validate(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subject {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}

// ValidateKind is IsValid restricted to one token kind. An empty subject skips the subject check.
func (v *Validator) ValidateKind(raw, subject string, kind Kind) (*Claims, error) {
	var (
		claims *Claims
		err    error
	)
	if subject == "" {
		claims, err = v.Validate(raw)
	} else {
		claims, err = v.IsValid(raw, subject)
	}
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// Identify returns the claims of a correctly signed token even if it has expired.
func (v *Validator) Identify(raw string) (*Claims, error) {
	claims, err := v.codec.DecodeIgnoringTime(raw)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
