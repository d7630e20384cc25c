package shared

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IDFunc produces primary keys for new rows.
type IDFunc func() string

// NewID returns a time-ordered UUIDv7 string, falling back to v4 if the
// v7 generator fails.
func NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// NormalizeName canonicalises role and permission names for storage and comparison.
func NormalizeName(name string) string {
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(name), " "))
}

// UniqueIDs trims ids and drops blanks and duplicates, preserving order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
