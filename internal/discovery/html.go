package discovery

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/fetcher"
)

// categoryIDPatterns recover category identifiers embedded in raw page
// text: JSON blobs inside script tags, inline config objects, and
// pagination query strings.
var categoryIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/category/(\d+)/products`),
	regexp.MustCompile(`categoryId["']?\s*[:=]\s*["']?(\d+)`),
	regexp.MustCompile(`[?&]v2=(\d+)`),
}

// ajaxFlag signals the endpoint should answer JSON rather than HTML.
const ajaxFlag = "ajax=true"

// FromHTML discovers product endpoints starting from category HTML
// pages. Each page is scanned twice: hard-coded regexes over the raw
// text recover ids from embedded JSON, and the configured link
// selector recovers ids from anchor hrefs (named query parameter
// first, then a single-capture regex). Page-level failures are
// swallowed; the remaining pages are still processed.
func (d *Discoverer) FromHTML(ctx context.Context, cfg *config.HTMLDiscoveryConfig, headers map[string]string) []string {
	selector := cfg.CategoryLinkSelector
	if selector == "" {
		selector = "a"
	}

	var idRegex *regexp.Regexp
	if cfg.ExtractCategoryIDRegex != "" {
		if re, err := regexp.Compile(cfg.ExtractCategoryIDRegex); err == nil {
			idRegex = re
		} else {
			d.logger.Warn("invalid extract_category_id_regex", "regex", cfg.ExtractCategoryIDRegex, "error", err)
		}
	}

	var endpoints []string

	for _, page := range cfg.CategoryPages {
		resp, err := d.client.Get(ctx, page, headers)
		if err != nil {
			d.logger.Warn("category page fetch failed", "page", page, "error", err)
			continue
		}

		// Raw-text regex scan first: survives markup changes and finds
		// ids inside script-tag JSON.
		for _, cid := range dedupe(scanCategoryIDs(resp.Text())) {
			if !strings.Contains(cfg.ProductAPIFromCategory, "{category_id}") {
				break
			}
			endpoint := config.Expand(cfg.ProductAPIFromCategory, map[string]string{
				"category_id": cid,
				"path":        page,
			})
			endpoint = ensureAjaxFlag(endpoint)
			if strings.HasPrefix(endpoint, "http") {
				endpoints = append(endpoints, endpoint)
			}
		}

		for _, href := range d.selectLinks(resp, selector, cfg.SelectorType, page) {
			if href == "" || (cfg.LinkHrefFilter != "" && !strings.Contains(href, cfg.LinkHrefFilter)) {
				continue
			}

			cid := ""
			if cfg.ExtractCategoryQueryParam != "" {
				cid = queryParam(href, cfg.ExtractCategoryQueryParam)
			}
			if cid == "" && idRegex != nil {
				if m := idRegex.FindStringSubmatch(href); len(m) > 1 {
					cid = m[1]
				}
			}
			if strings.Contains(cfg.ProductAPIFromCategory, "{category_id}") && cid == "" {
				continue
			}

			endpoint := config.Expand(cfg.ProductAPIFromCategory, map[string]string{
				"category_id": cid,
				"path":        href,
			})
			endpoint = ensureAjaxFlag(endpoint)
			if strings.HasPrefix(endpoint, "http") {
				endpoints = append(endpoints, endpoint)
			}
		}
	}

	return dedupe(endpoints)
}

// selectLinks extracts anchor hrefs with the configured selector.
func (d *Discoverer) selectLinks(resp *fetcher.Response, selector, selectorType, page string) []string {
	var hrefs []string

	if selectorType == "xpath" {
		doc, err := html.Parse(strings.NewReader(resp.Text()))
		if err != nil {
			d.logger.Warn("html parse failed", "page", page, "error", err)
			return nil
		}
		nodes, err := htmlquery.QueryAll(doc, selector)
		if err != nil {
			d.logger.Warn("invalid xpath selector", "selector", selector, "error", err)
			return nil
		}
		for _, node := range nodes {
			if href := htmlquery.SelectAttr(node, "href"); href != "" {
				hrefs = append(hrefs, href)
			}
		}
		return hrefs
	}

	doc, err := resp.Document()
	if err != nil {
		d.logger.Warn("html parse failed", "page", page, "error", err)
		return nil
	}
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// scanCategoryIDs runs the hard-coded id patterns over raw page text.
func scanCategoryIDs(text string) []string {
	var ids []string
	for _, re := range categoryIDPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				ids = append(ids, m[1])
			}
		}
	}
	return ids
}

// queryParam extracts a named query-string parameter from an href.
func queryParam(href, name string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}

// ensureAjaxFlag appends the JSON-response flag when missing.
func ensureAjaxFlag(endpoint string) string {
	if strings.Contains(endpoint, ajaxFlag) {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + ajaxFlag
}
