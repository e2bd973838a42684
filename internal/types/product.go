package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Provenance records where a flattened product came from.
type Provenance struct {
	// Source is the site-level source label (e.g. "scraper", "api").
	Source string `json:"source"`

	// Endpoint is the URL the raw item was fetched from.
	Endpoint string `json:"endpoint"`
}

// Product is a flattened product record: the result of applying a field
// map to a raw item returned by a retailer endpoint.
type Product struct {
	// Fields stores the mapped destination-field values.
	Fields map[string]any

	// Raw is the original item the fields were extracted from. It is
	// preserved verbatim for the metadata envelope.
	Raw map[string]any

	// Meta describes how this product was discovered.
	Meta Provenance

	// FetchedAt is when the raw item was retrieved.
	FetchedAt time.Time
}

// NewProduct creates an empty Product with the given provenance.
func NewProduct(meta Provenance) *Product {
	return &Product{
		Fields:    make(map[string]any),
		Meta:      meta,
		FetchedAt: time.Now(),
	}
}

// Set sets a destination field value.
func (p *Product) Set(key string, value any) {
	p.Fields[key] = value
}

// GetString retrieves a field value coerced to a trimmed string.
// Non-string values and missing fields yield "".
func (p *Product) GetString(key string) string {
	v, ok := p.Fields[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Has returns true if the field exists and is non-nil.
func (p *Product) Has(key string) bool {
	v, ok := p.Fields[key]
	return ok && v != nil
}

// Identifier returns the product's stable identifier, preferring
// external_id over product_id. Empty means the record has no identity
// and must be rejected at the ingestion boundary.
func (p *Product) Identifier() string {
	for _, key := range []string{"external_id", "product_id"} {
		if v, ok := p.Fields[key]; ok && v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringify renders scalars the way they should appear as identifiers:
// strings pass through, numbers lose any float formatting artifacts.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		// JSON numbers decode as float64; integral ids must not render
		// with an exponent or trailing zeros.
		if val == float64(int64(val)) {
			return json.Number(jsonInt(int64(val))).String()
		}
		b, _ := json.Marshal(val)
		return string(b)
	case int:
		return jsonInt(int64(val))
	case int64:
		return jsonInt(val)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// Stringify exposes identifier-style rendering for other packages.
func Stringify(v any) string {
	return stringify(v)
}
