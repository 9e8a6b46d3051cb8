// Package collection provides the nested dataset collection model:
// typed, possibly still-populating groupings of dataset instances used
// by collection-operation tools and mapping-over-collections.
package collection

import (
	"fmt"
	"strings"
)

// Type is the colon-joined descriptor of a collection's nesting shape,
// e.g. "list", "paired", "list:paired", "list:list:paired". The leftmost
// token is outermost, and the type implies the exact recursive shape: a
// "list:paired" collection's elements are each "paired" collections.
type Type string

// Primitive type tokens.
const (
	tokenList   = "list"
	tokenPaired = "paired"
)

// ParseType validates a collection type descriptor.
func ParseType(s string) (Type, error) {
	if s == "" {
		return "", &StructureError{Message: "collection type must not be empty"}
	}
	for _, tok := range strings.Split(s, ":") {
		switch tok {
		case tokenList, tokenPaired:
		default:
			return "", &StructureError{Message: fmt.Sprintf("unknown collection type token %q in %q", tok, s)}
		}
	}
	return Type(s), nil
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Rank returns the nesting depth (number of tokens).
func (t Type) Rank() int {
	return strings.Count(string(t), ":") + 1
}

// Outer returns the outermost (leftmost) token.
func (t Type) Outer() string {
	if i := strings.IndexByte(string(t), ':'); i >= 0 {
		return string(t)[:i]
	}
	return string(t)
}

// Child returns the type with the outermost token stripped: the type
// every immediate child collection must have. ok is false at leaf level,
// where elements are dataset instances rather than collections.
func (t Type) Child() (Type, bool) {
	if i := strings.IndexByte(string(t), ':'); i >= 0 {
		return Type(string(t)[i+1:]), true
	}
	return "", false
}

// IsLeafLevel reports whether this collection's elements are dataset
// instances.
func (t Type) IsLeafLevel() bool {
	return !strings.ContainsRune(string(t), ':')
}

// IsPaired reports whether the outermost level is a forward/reverse pair.
func (t Type) IsPaired() bool {
	return t.Outer() == tokenPaired
}

// Paired element identifiers.
const (
	IdentifierForward = "forward"
	IdentifierReverse = "reverse"
)
