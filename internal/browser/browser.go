// Package browser implements the headless-browser fallback for product
// identifier resolution. It drives a Chromium instance through Rod,
// optionally with stealth patches, replaying the site's own listing
// requests so that bot defenses see ordinary browser traffic.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/resolver"
)

// productIDsPattern finds embedded identifier arrays in page source and
// captured response bodies.
var productIDsPattern = regexp.MustCompile(`"productIds"\s*:\s*\[([\d,\s]+)\]`)

// Resolver resolves product identifiers through a headless browser. It
// satisfies resolver.BrowserResolver. Each resolution launches a fresh
// browser and closes it before returning.
type Resolver struct {
	cfg    config.BrowserConfig
	api    *config.APIConfig
	logger *slog.Logger
}

// New creates a browser-backed resolver for one site.
func New(cfg config.BrowserConfig, api *config.APIConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		api:    api,
		logger: logger.With("component", "browser"),
	}
}

// ResolveProductIDs launches a browser, warms the site session via the
// home page, and tries the category API and then the rendered category
// page until identifiers surface.
func (r *Resolver) ResolveProductIDs(ctx context.Context, category config.CategoryRef) ([]int64, error) {
	launchURL, err := r.launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(launchURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			r.logger.Warn("browser close failed", "error", cerr)
		}
	}()

	page, err := r.newPage(b)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	r.warmSession(page)

	if ids := r.idsViaAPI(page, category); len(ids) > 0 {
		return ids, nil
	}

	return r.idsViaCategoryPage(page, category)
}

// launch starts a Chromium instance with the flags needed to run in
// constrained environments.
func (r *Resolver) launch() (string, error) {
	l := launcher.New().
		Headless(r.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	return l.Launch()
}

// newPage opens a page, stealth-patched when configured.
func (r *Resolver) newPage(b *rod.Browser) (*rod.Page, error) {
	if r.cfg.Stealth {
		page, err := stealth.Page(b)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return b.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// warmSession visits the home page so the session picks up the cookies
// the listing endpoints expect. Failure is logged; later strategies may
// still succeed without the cookies.
func (r *Resolver) warmSession(page *rod.Page) {
	if r.api.HomeURL == "" {
		return
	}
	if err := page.Timeout(r.cfg.NavigationTimeout).Navigate(r.api.HomeURL); err != nil {
		r.logger.Warn("home page warmup failed", "url", r.api.HomeURL, "error", err)
		return
	}
	if err := page.Timeout(r.cfg.NavigationTimeout).WaitStable(r.cfg.SettleDelay); err != nil {
		r.logger.Debug("home page stability timeout, continuing", "error", err)
	}
}

// idsViaAPI navigates straight to the category listing endpoint inside
// the browser session and parses the JSON body.
func (r *Resolver) idsViaAPI(page *rod.Page, category config.CategoryRef) []int64 {
	if r.api.CategoryIDsURL == "" {
		return nil
	}
	url := config.Expand(r.api.CategoryIDsURL, map[string]string{"category_id": category.ID})

	if err := page.Timeout(r.cfg.NavigationTimeout).Navigate(url); err != nil {
		r.logger.Warn("in-browser api navigation failed", "url", url, "error", err)
		return nil
	}
	if err := page.Timeout(r.cfg.NavigationTimeout).WaitLoad(); err != nil {
		r.logger.Debug("api page load timeout, continuing", "error", err)
	}

	body, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		r.logger.Warn("reading api response body failed", "url", url, "error", err)
		return nil
	}

	var doc any
	if err := json.Unmarshal([]byte(body.Value.String()), &doc); err != nil {
		r.logger.Debug("api response was not json", "url", url)
		return nil
	}
	return resolver.ExtractProductIDs(doc)
}

// idsViaCategoryPage renders the category page, scrolls to trigger lazy
// listing requests, and scans both the captured network bodies and the
// final page source for embedded identifier arrays.
func (r *Resolver) idsViaCategoryPage(page *rod.Page, category config.CategoryRef) ([]int64, error) {
	if r.api.CategoryPageURL == "" {
		return nil, nil
	}
	url := config.Expand(r.api.CategoryPageURL, map[string]string{
		"category_id": category.ID,
		"name":        category.Name,
	})

	var mu sync.Mutex
	var captured []string

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		r.logger.Debug("network domain enable failed", "error", err)
	}
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if !jsonResponse(e) {
			return
		}
		body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
		if err != nil {
			return
		}
		mu.Lock()
		captured = append(captured, body.Body)
		mu.Unlock()
	})()

	if err := page.Timeout(r.cfg.NavigationTimeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("category page navigation: %w", err)
	}
	if err := page.Timeout(r.cfg.NavigationTimeout).WaitStable(r.cfg.SettleDelay); err != nil {
		r.logger.Debug("category page stability timeout, continuing", "error", err)
	}

	for i := 0; i < r.cfg.ScrollPasses; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			r.logger.Debug("scroll failed", "pass", i+1, "error", err)
			break
		}
		time.Sleep(r.cfg.SettleDelay)
	}

	html, err := page.HTML()
	if err != nil {
		r.logger.Warn("reading category page source failed", "error", err)
	}

	mu.Lock()
	snapshot := append([]string{}, captured...)
	mu.Unlock()
	sources, responseCount := combineSources(snapshot, html)

	ids := scanProductIDs(sources)
	r.logger.Info("category page scan complete",
		"category", category.ID,
		"captured_responses", responseCount,
		"ids", len(ids),
	)
	return ids, nil
}

// jsonResponse reports whether a captured network response carries a
// JSON body worth scanning.
func jsonResponse(e *proto.NetworkResponseReceived) bool {
	return e.Response != nil && strings.Contains(e.Response.MIMEType, "json")
}

// combineSources appends the rendered page source to the captured
// response bodies. The returned count covers network responses only;
// a failed page read contributes nothing.
func combineSources(captured []string, html string) ([]string, int) {
	sources := captured
	if html != "" {
		sources = append(sources, html)
	}
	return sources, len(captured)
}

// scanProductIDs extracts and deduplicates identifiers from raw
// response text, preserving first-seen order.
func scanProductIDs(sources []string) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, src := range sources {
		for _, m := range productIDsPattern.FindAllStringSubmatch(src, -1) {
			for _, field := range strings.Split(m[1], ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
				if err != nil || seen[id] {
					continue
				}
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
