package shared

import "context"

// Principal is the identity extracted from a validated access token.
type Principal struct {
	ID    string
	Name  string
	Roles []string
}

// HasAnyRole reports whether the principal holds at least one of roles.
// Names are compared after NormalizeName.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, held := range p.Roles {
		held = NormalizeName(held)
		for _, want := range roles {
			if held == NormalizeName(want) {
				return true
			}
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// ActorID returns the principal id stored in ctx, or "" when anonymous.
func ActorID(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.ID
	}
	return ""
}
