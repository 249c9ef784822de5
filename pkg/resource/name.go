// Package resource defines the closed set of managed personalization
// resource kinds, their naming conventions, ARN construction, and the
// parent/child ownership tree built from remote listings.
package resource

import (
	"fmt"
	"strings"
	"unicode"
)

// Name is a validated camelCased resource name that can be rendered in
// the other casings the remote API and ARNs use.
type Name struct {
	camel string
}

// NewName validates and wraps a camelCased name. Names must be purely
// alphabetic and start with a lower case character.
func NewName(name string) (Name, error) {
	if name == "" {
		return Name{}, fmt.Errorf("name must not be empty")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return Name{}, fmt.Errorf("name %q must be camelCased", name)
		}
	}
	if !unicode.IsLower(rune(name[0])) {
		return Name{}, fmt.Errorf("name %q must start with a lower case character", name)
	}
	return Name{camel: name}, nil
}

// Camel returns the camelCasedName.
func (n Name) Camel() string { return n.camel }

// Snake returns the snake_cased_name.
func (n Name) Snake() string {
	var b strings.Builder
	for i, r := range n.camel {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Dash returns the dash-cased-name.
func (n Name) Dash() string {
	return strings.ReplaceAll(n.Snake(), "_", "-")
}

func (n Name) String() string { return n.camel }

// CamelToSnake converts a camelCasedName to a snake_cased_name.
func CamelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnakeToCamel converts a snake_cased_name to a camelCasedName.
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
