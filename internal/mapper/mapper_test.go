package mapper

import (
	"errors"
	"testing"

	"github.com/stylefeed/stylefeed/internal/types"
)

var testMeta = types.Provenance{Source: "api", Endpoint: "https://example.com/products"}

func TestFlattenFallbackChain(t *testing.T) {
	item := map[string]any{
		"detail": map[string]any{
			"name": "Linen Shirt",
		},
		"id": float64(420),
	}
	fieldMap := map[string]any{
		"title":       []any{"displayName", "detail.name"},
		"external_id": "id",
		"description": "detail.longDescription",
	}

	prod := Flatten(item, fieldMap, testMeta)

	if got := prod.GetString("title"); got != "Linen Shirt" {
		t.Errorf("expected fallback title 'Linen Shirt', got %q", got)
	}
	if got := prod.Identifier(); got != "420" {
		t.Errorf("expected identifier '420', got %q", got)
	}
	if v := prod.Fields["description"]; v != nil {
		t.Errorf("expected nil for unresolved field, got %v", v)
	}
	if prod.Raw["id"] != float64(420) {
		t.Error("raw item not preserved")
	}
}

func TestFlattenSkipsBlankExpressions(t *testing.T) {
	item := map[string]any{"name": "Coat"}
	fieldMap := map[string]any{
		"title": []any{"", "name"},
	}

	prod := Flatten(item, fieldMap, testMeta)
	if got := prod.GetString("title"); got != "Coat" {
		t.Errorf("blank expression should be skipped, got title %q", got)
	}
}

func TestFlattenRejectsDataURIImages(t *testing.T) {
	item := map[string]any{
		"placeholder": "data:image/gif;base64,R0lGOD",
		"media": map[string]any{
			"main": "//static.example.net/photos/1.jpg",
		},
	}
	fieldMap := map[string]any{
		"image_url": []any{"placeholder", "media.main"},
	}

	prod := Flatten(item, fieldMap, testMeta)
	if got := prod.GetString("image_url"); got != "//static.example.net/photos/1.jpg" {
		t.Errorf("data URI must never win image_url, got %q", got)
	}
}

func TestAcceptRequiresIdentifier(t *testing.T) {
	fieldMap := map[string]any{"title": "name"}
	prod := Flatten(map[string]any{"name": "Anonymous"}, fieldMap, testMeta)

	err := Accept(prod, fieldMap)
	if !errors.Is(err, types.ErrNoIdentifier) {
		t.Errorf("expected ErrNoIdentifier, got %v", err)
	}
}

func TestAcceptRequiresImageWhenMapped(t *testing.T) {
	fieldMap := map[string]any{
		"external_id": "id",
		"image_url":   "img",
	}
	prod := Flatten(map[string]any{"id": "p1"}, fieldMap, testMeta)

	if err := Accept(prod, fieldMap); !errors.Is(err, types.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}

	// No image_url in the field map: identifier alone is enough.
	idOnly := map[string]any{"external_id": "id"}
	prod = Flatten(map[string]any{"id": "p1"}, idOnly, testMeta)
	if err := Accept(prod, idOnly); err != nil {
		t.Errorf("expected accept, got %v", err)
	}
}
