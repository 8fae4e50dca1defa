package toolgen

import (
	"fmt"
	"strings"

	"github.com/brixta-dev/mcp-bridge/openapi"
)

// Name derives a deterministic tool name for an operation: the declared
// operationId when present, otherwise method+path; lower-cased with
// non-alphanumeric runs collapsed to a single underscore.
func Name(op openapi.Operation) string {
	if op.ID != "" {
		return Slug(op.ID)
	}
	return Slug(op.Method + " " + op.Path)
}

// Slug normalizes a string into a tool-name-safe form
func Slug(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// propertyName keeps a parameter's declared name when it is already a
// safe JSON property name, and escapes it otherwise (brackets and
// similar punctuation collapse to underscores)
func propertyName(name string) string {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-', r == '.':
		default:
			return Slug(name)
		}
	}
	if name == "" {
		return "unnamed"
	}
	return name
}

// uniqueName resolves a collision by appending a numeric suffix in
// catalog iteration order
func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
