package jsonpath

import (
	"encoding/json"
	"testing"
)

func doc(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad test document: %v", err)
	}
	return v
}

func TestLookupNestedPath(t *testing.T) {
	d := doc(t, `{"detail": {"colors": [{"image": {"url": "/photos/1.jpg"}}]}}`)

	got := Lookup("detail.colors[0].image.url", d)
	if got != "/photos/1.jpg" {
		t.Errorf("expected '/photos/1.jpg', got %v", got)
	}
}

func TestLookupLiteral(t *testing.T) {
	d := doc(t, `{}`)
	if got := Lookup("'EUR'", d); got != "EUR" {
		t.Errorf("expected literal 'EUR', got %v", got)
	}
}

func TestLookupProjection(t *testing.T) {
	d := doc(t, `{"sizes": [{"name": "S"}, {"name": "M"}]}`)

	got := LookupList("sizes[].name", d)
	if len(got) != 2 || got[0] != "S" || got[1] != "M" {
		t.Errorf("expected [S M], got %v", got)
	}
}

func TestLookupMissingAndInvalid(t *testing.T) {
	d := doc(t, `{"a": 1}`)

	if got := Lookup("b.c", d); got != nil {
		t.Errorf("missing path must yield nil, got %v", got)
	}
	if got := Lookup("", d); got != nil {
		t.Errorf("blank expression must yield nil, got %v", got)
	}
	if got := Lookup("[[[", d); got != nil {
		t.Errorf("invalid expression must be swallowed, got %v", got)
	}
}

func TestLookupListWrapsScalar(t *testing.T) {
	d := doc(t, `{"size": "M"}`)
	got := LookupList("size", d)
	if len(got) != 1 || got[0] != "M" {
		t.Errorf("scalar should be wrapped in a one-element list, got %v", got)
	}
}

func TestSearchReportsErrors(t *testing.T) {
	if _, err := Search("[[[", map[string]any{}); err == nil {
		t.Error("expected error for invalid expression")
	}
}
