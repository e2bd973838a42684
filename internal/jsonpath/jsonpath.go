// Package jsonpath evaluates JMESPath expressions against decoded JSON
// documents. It is the query language behind field maps and category
// discovery: nested attribute access, array indexing, wildcard
// projection, sub-object selection and literals.
package jsonpath

import (
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// Search evaluates expr against doc. Malformed expressions and
// traversal failures surface as errors; a valid expression over a
// missing path returns (nil, nil).
func Search(expr string, doc any) (any, error) {
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return result, nil
}

// Lookup is the swallowing variant used inside fallback chains: any
// parse or traversal error is treated as "no match" and yields nil.
func Lookup(expr string, doc any) any {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil
	}
	return result
}

// LookupString evaluates expr and returns the result only when it is a
// non-empty string.
func LookupString(expr string, doc any) string {
	v := Lookup(expr, doc)
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// LookupList evaluates expr and coerces the result to a slice. A scalar
// match yields a single-element slice; no match yields nil.
func LookupList(expr string, doc any) []any {
	v := Lookup(expr, doc)
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
