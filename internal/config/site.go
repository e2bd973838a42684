package config

// Site describes one retailer integration. Immutable for the duration
// of a run; loaded once per invocation from sites.yaml.
type Site struct {
	Brand           string `mapstructure:"brand"             yaml:"brand"`
	Merchant        string `mapstructure:"merchant"          yaml:"merchant"`
	Source          string `mapstructure:"source"            yaml:"source"`
	Country         string `mapstructure:"country"           yaml:"country"`
	StaticAssetHost string `mapstructure:"static_asset_host" yaml:"static_asset_host"`
	Debug           bool   `mapstructure:"debug"             yaml:"debug"`

	// RequiredImageMarker, when set, must appear in every image URL;
	// URLs without it are truncated CDN paths the asset host 404s on.
	RequiredImageMarker string `mapstructure:"required_image_marker" yaml:"required_image_marker"`

	API *APIConfig `mapstructure:"api" yaml:"api"`
}

// APIConfig describes how to discover and fetch products from the
// retailer's JSON endpoints.
type APIConfig struct {
	// Prewarm URLs are fetched before discovery to acquire session
	// cookies.
	Prewarm []string `mapstructure:"prewarm" yaml:"prewarm"`

	// HomeURL is visited through the headless browser to pick up
	// anti-bot cookies before replaying API calls.
	HomeURL string `mapstructure:"home_url" yaml:"home_url"`

	// CategoryIDsURL is a template with {category_id} resolving to the
	// category products-listing endpoint (returns productIds).
	CategoryIDsURL string `mapstructure:"category_ids_url" yaml:"category_ids_url"`

	// CategoryPageURL is a template with {category_id} resolving to the
	// rendered HTML category page, used by the browser fallback.
	CategoryPageURL string `mapstructure:"category_page_url" yaml:"category_page_url"`

	// ProductsURL is a template with {category_id} and {product_ids}
	// resolving to the product-detail batch endpoint.
	ProductsURL string `mapstructure:"products_url" yaml:"products_url"`

	// ProductURLTemplate synthesizes a public product URL from {slug}
	// and {product_id} when the mapped record lacks one.
	ProductURLTemplate string `mapstructure:"product_url_template" yaml:"product_url_template"`

	// CacheFile holds category_id=url lines consulted before any
	// network discovery. Missing file is non-fatal.
	CacheFile string `mapstructure:"cache_file" yaml:"cache_file"`

	// Endpoints is a static product endpoint list used verbatim when
	// no discovery is configured.
	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"`

	// Categories configures JSON category discovery.
	Categories *CategoriesConfig `mapstructure:"categories" yaml:"categories"`

	// HTML configures HTML category-page discovery.
	HTML *HTMLDiscoveryConfig `mapstructure:"html" yaml:"html"`

	// CategoryEndpoints enumerates categories for the two-step
	// id-list/detail flow, with per-category gender and category type.
	CategoryEndpoints []CategoryRef `mapstructure:"category_endpoints" yaml:"category_endpoints"`

	// ItemsPath locates the item list in a product-detail response.
	// Either a single expression or a fallback list; the first
	// expression yielding items wins.
	ItemsPath any `mapstructure:"items_path" yaml:"items_path"`

	// FieldMap maps destination fields to one or more path
	// expressions, evaluated top to bottom.
	FieldMap map[string]any `mapstructure:"field_map" yaml:"field_map"`

	// Headers are sent with every request to this site.
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`

	// BatchSize is how many product ids go into one detail request.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// CategoryRef names one category to scrape.
type CategoryRef struct {
	ID       string `mapstructure:"id"       yaml:"id"`
	Name     string `mapstructure:"name"     yaml:"name"`
	Gender   string `mapstructure:"gender"   yaml:"gender"`
	Category string `mapstructure:"category" yaml:"category"`
}

// CategoriesConfig drives JSON category discovery: fetch Endpoint,
// extract a list via ItemsPath, then per item either take a direct
// URL, resolve one via URLPath, or template an id from IDPath into
// URLTemplate.
type CategoriesConfig struct {
	Endpoint    string `mapstructure:"endpoint"     yaml:"endpoint"`
	ItemsPath   string `mapstructure:"items_path"   yaml:"items_path"`
	URLPath     string `mapstructure:"url_path"     yaml:"url_path"`
	IDPath      string `mapstructure:"id_path"      yaml:"id_path"`
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"`
}

// HTMLDiscoveryConfig drives HTML category-page discovery.
type HTMLDiscoveryConfig struct {
	CategoryPages             []string `mapstructure:"category_pages"               yaml:"category_pages"`
	CategoryLinkSelector      string   `mapstructure:"category_link_selector"       yaml:"category_link_selector"`
	SelectorType              string   `mapstructure:"selector_type"                yaml:"selector_type"` // css (default), xpath
	LinkHrefFilter            string   `mapstructure:"link_href_filter"             yaml:"link_href_filter"`
	ProductAPIFromCategory    string   `mapstructure:"product_api_from_category"    yaml:"product_api_from_category"`
	ExtractCategoryIDRegex    string   `mapstructure:"extract_category_id_regex"    yaml:"extract_category_id_regex"`
	ExtractCategoryQueryParam string   `mapstructure:"extract_category_query_param" yaml:"extract_category_query_param"`
}

// FieldMapExpressions normalizes one field-map entry to an ordered
// expression list. A nil or blank entry yields nil.
func FieldMapExpressions(entry any) []string {
	switch v := entry.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else if e == nil {
				out = append(out, "")
			}
		}
		return out
	default:
		return nil
	}
}

// ItemsPathList normalizes the items_path entry to an ordered list of
// candidate expressions.
func ItemsPathList(entry any) []string {
	return FieldMapExpressions(entry)
}
