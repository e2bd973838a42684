// Package mapper flattens arbitrary nested retailer JSON into the fixed
// destination schema using declarative path expressions with ordered
// fallback chains.
package mapper

import (
	"strings"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/jsonpath"
	"github.com/stylefeed/stylefeed/internal/types"
)

// dataURIPrefix marks inline base64 placeholder images substituted by
// sites when no real image exists. They are never acceptable image_url
// values.
const dataURIPrefix = "data:"

// Flatten applies a field map to one raw item. For each destination
// field the expressions are evaluated top to bottom; the first non-nil
// result wins, except that data-URI placeholders never win image_url.
// Nil or blank expressions map the field to nil without error.
func Flatten(item map[string]any, fieldMap map[string]any, meta types.Provenance) *types.Product {
	prod := types.NewProduct(meta)
	prod.Raw = item

	for dest, entry := range fieldMap {
		exprs := config.FieldMapExpressions(entry)
		prod.Fields[dest] = evaluate(dest, exprs, item)
	}
	return prod
}

// evaluate walks the fallback chain for one destination field.
func evaluate(dest string, exprs []string, item map[string]any) any {
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		value := jsonpath.Lookup(expr, item)
		if value == nil {
			continue
		}
		if dest == "image_url" && isPlaceholderImage(value) {
			continue
		}
		return value
	}
	return nil
}

func isPlaceholderImage(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, dataURIPrefix)
}

// Accept decides whether a flattened record passes the ingestion
// boundary: it must carry an identifier, and when the field map asked
// for an image_url one must have resolved.
func Accept(prod *types.Product, fieldMap map[string]any) error {
	if prod.Identifier() == "" {
		return types.ErrNoIdentifier
	}
	if _, wantsImage := fieldMap["image_url"]; wantsImage {
		if !prod.Has("image_url") || prod.GetString("image_url") == "" {
			return types.ErrNoImage
		}
	}
	return nil
}
