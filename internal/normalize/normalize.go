// Package normalize converts mapped product fields into catalog rows.
// Every sub-step is best effort: when an input is malformed the field
// keeps its zero value and the rest of the row is still produced.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/types"
)

var (
	priceJunkPattern = regexp.MustCompile(`[^0-9.,]`)
	slugPattern      = regexp.MustCompile(`[^a-z0-9]+`)
)

var (
	menWords   = []string{"MEN", "MAN", "MALE", "GUY", "BOY"}
	womenWords = []string{"WOMEN", "WOMAN", "FEMALE", "LADY", "GIRL"}
)

// availabilityAliases maps merchant availability spellings onto the
// canonical values. Unrecognized spellings stay unknown.
var availabilityAliases = map[string]string{
	"in_stock":     types.AvailabilityInStock,
	"instock":      types.AvailabilityInStock,
	"in stock":     types.AvailabilityInStock,
	"available":    types.AvailabilityInStock,
	"true":         types.AvailabilityInStock,
	"out_of_stock": types.AvailabilityOutOfStock,
	"out-of-stock": types.AvailabilityOutOfStock,
	"outofstock":   types.AvailabilityOutOfStock,
	"sold_out":     types.AvailabilityOutOfStock,
	"sold-out":     types.AvailabilityOutOfStock,
	"sold out":     types.AvailabilityOutOfStock,
	"unavailable":  types.AvailabilityOutOfStock,
	"false":        types.AvailabilityOutOfStock,
}

// ToRow maps a flattened product into a catalog row for the given
// site. Site config supplies the brand default, the static asset host
// for relative images, the country, and the product URL template.
func ToRow(flat map[string]any, site config.Site) types.Row {
	row := types.Row{
		Source:       stringOr(flat, "source", "scraper"),
		Title:        stringOr(flat, "title", "Unknown title"),
		Description:  getString(flat, "description"),
		Brand:        stringOr(flat, "brand", site.Brand),
		Currency:     stringOr(flat, "currency", "EUR"),
		AffiliateURL: getString(flat, "affiliate_url"),
		Gender:       NormalizeGender(getString(flat, "gender")),
		Category:     getString(flat, "category"),
		Size:         FlattenSizes(firstPresent(flat, "size", "sizes")),
		Availability: NormalizeAvailability(flat["availability"]),
		SecondHand:   false,
		Country:      site.Country,
	}

	externalID := firstPresent(flat, "external_id", "product_id")
	if externalID != nil {
		row.ID = types.Stringify(externalID)
	} else {
		row.ID = stringOr(flat, "product_url", "unknown")
	}

	row.Price = NormalizePrice(flat["price"])
	row.ImageURL = RepairImageURL(getString(flat, "image_url"), site.StaticAssetHost)

	row.ProductURL = getString(flat, "product_url")
	if row.ProductURL == "" && externalID != nil {
		row.ProductURL = synthesizeProductURL(site, row.Title, types.Stringify(externalID))
	}

	row.Metadata = buildMetadata(flat, row)
	return row
}

// NormalizePrice converts a raw price value to major currency units.
// Integral values of 1000 or more are assumed to be minor units and
// divided by 100; this heuristic misreads genuinely whole prices of
// 1000+. Strings are stripped of currency symbols, a lone comma is
// treated as the decimal mark, and extra dots as thousand separators.
func NormalizePrice(v any) *float64 {
	switch p := v.(type) {
	case float64:
		return scaleMinorUnits(p)
	case int:
		return scaleMinorUnits(float64(p))
	case int64:
		return scaleMinorUnits(float64(p))
	case string:
		s := priceJunkPattern.ReplaceAllString(strings.TrimSpace(p), "")
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		}
		if strings.Count(s, ".") > 1 {
			parts := strings.Split(s, ".")
			s = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
		}
		if s == "" {
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return scaleMinorUnits(num)
	default:
		return nil
	}
}

func scaleMinorUnits(num float64) *float64 {
	if num >= 1000 && num == math.Trunc(num) {
		num /= 100
	}
	return &num
}

// NormalizeGender canonicalizes merchant gender labels to MAN or
// WOMAN. Labels matching neither word list pass through unchanged, in
// uppercase; empty input stays empty.
func NormalizeGender(raw string) string {
	g := strings.ToUpper(strings.TrimSpace(raw))
	if g == "" || g == types.GenderMan || g == types.GenderWoman {
		return g
	}
	// Women words go first: each contains its men counterpart
	// (WOMEN/MEN, FEMALE/MALE).
	for _, w := range womenWords {
		if strings.Contains(g, w) {
			return types.GenderWoman
		}
	}
	for _, w := range menWords {
		if strings.Contains(g, w) {
			return types.GenderMan
		}
	}
	return g
}

// FlattenSizes renders a size value (string, list, or list of lists)
// as a deduplicated comma-separated string, first-seen order.
func FlattenSizes(v any) string {
	switch sizes := v.(type) {
	case string:
		return strings.TrimSpace(sizes)
	case []any:
		seen := make(map[string]bool)
		var flat []string
		appendSize := func(s string) {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				return
			}
			seen[s] = true
			flat = append(flat, s)
		}
		for _, item := range sizes {
			switch s := item.(type) {
			case string:
				appendSize(s)
			case []any:
				for _, nested := range s {
					if t, ok := nested.(string); ok {
						appendSize(t)
					}
				}
			}
		}
		return strings.Join(flat, ", ")
	default:
		return ""
	}
}

// NormalizeAvailability maps a raw availability value onto the
// canonical in_stock / out_of_stock / unknown triple. Booleans map
// directly; nil and unrecognized text are unknown.
func NormalizeAvailability(v any) string {
	switch a := v.(type) {
	case nil:
		return types.AvailabilityUnknown
	case bool:
		if a {
			return types.AvailabilityInStock
		}
		return types.AvailabilityOutOfStock
	default:
		text := strings.ToLower(strings.TrimSpace(types.Stringify(a)))
		if canonical, ok := availabilityAliases[text]; ok {
			return canonical
		}
		return types.AvailabilityUnknown
	}
}

// RepairImageURL fixes the URL shapes merchants commonly emit:
// protocol-relative URLs get https, root-relative paths get the site's
// static asset host prefixed.
func RepairImageURL(raw, staticAssetHost string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/") && staticAssetHost != "":
		return strings.TrimSuffix(staticAssetHost, "/") + raw
	default:
		return raw
	}
}

// Slugify lowercases a title and collapses every non-alphanumeric run
// to a single hyphen.
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

func synthesizeProductURL(site config.Site, title, id string) string {
	if site.API == nil || site.API.ProductURLTemplate == "" {
		return ""
	}
	return config.Expand(site.API.ProductURLTemplate, map[string]string{
		"slug": Slugify(title),
		"id":   id,
	})
}

// buildMetadata assembles the metadata envelope: row provenance, any
// upstream _meta block, raw-item context, and the pre-normalization
// price and currency.
func buildMetadata(flat map[string]any, row types.Row) map[string]any {
	meta := make(map[string]any)
	if row.Source != "" {
		meta["source"] = row.Source
	}
	if row.ID != "" {
		meta["id"] = row.ID
	}
	if upstream, ok := flat["_meta"].(map[string]any); ok {
		for k, v := range upstream {
			meta[k] = v
		}
	}
	for _, k := range []string{"_raw_item", "_raw_html_len"} {
		if v, ok := flat[k]; ok && v != nil {
			meta[k] = v
		}
	}
	if v, ok := flat["price"]; ok && v != nil {
		if _, taken := meta["original_price"]; !taken {
			meta["original_price"] = v
		}
	}
	if v, ok := flat["currency"]; ok && v != nil {
		if _, taken := meta["original_currency"]; !taken {
			meta["original_currency"] = v
		}
	}
	return meta
}

func getString(flat map[string]any, key string) string {
	v, ok := flat[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(types.Stringify(v))
}

func stringOr(flat map[string]any, key, fallback string) string {
	if s := getString(flat, key); s != "" {
		return s
	}
	return fallback
}

func firstPresent(flat map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := flat[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}
