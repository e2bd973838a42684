package fetcher

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RobotsCache handles robots.txt fetching, parsing, and enforcement.
// Disabled by default for retailer API scraping; the politeness delay
// still applies either way.
type RobotsCache struct {
	enabled bool
	cache   map[string]*robotsData
	mu      sync.RWMutex
	client  *http.Client
}

// robotsData holds parsed robots.txt rules for a domain.
type robotsData struct {
	disallowed []string
	allowed    []string
	crawlDelay time.Duration
	fetchedAt  time.Time
}

// NewRobotsCache creates a RobotsCache.
func NewRobotsCache(enabled bool) *RobotsCache {
	return &RobotsCache{
		enabled: enabled,
		cache:   make(map[string]*robotsData),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IsAllowed checks if a URL is allowed by the domain's robots.txt.
func (rc *RobotsCache) IsAllowed(rawURL string) bool {
	if !rc.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	domain := u.Scheme + "://" + u.Host
	data := rc.getRobotsData(domain)
	if data == nil {
		return true // Can't fetch robots.txt = allow
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	// Allowed rules override disallowed ones
	for _, pattern := range data.allowed {
		if matchRobotsPattern(pattern, path) {
			return true
		}
	}
	for _, pattern := range data.disallowed {
		if matchRobotsPattern(pattern, path) {
			return false
		}
	}

	return true
}

// CrawlDelay returns the crawl-delay robots.txt declares for a URL's
// domain. Zero when checking is disabled, the file is unreachable, or
// no delay is declared.
func (rc *RobotsCache) CrawlDelay(rawURL string) time.Duration {
	if !rc.enabled {
		return 0
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	data := rc.getRobotsData(u.Scheme + "://" + u.Host)
	if data == nil {
		return 0
	}
	return data.crawlDelay
}

// getRobotsData fetches and caches robots.txt for a domain.
func (rc *RobotsCache) getRobotsData(domain string) *robotsData {
	rc.mu.RLock()
	data, ok := rc.cache[domain]
	rc.mu.RUnlock()

	if ok {
		return data
	}

	data = rc.fetchRobotsTxt(domain)

	rc.mu.Lock()
	rc.cache[domain] = data
	rc.mu.Unlock()

	return data
}

// fetchRobotsTxt downloads and parses robots.txt.
func (rc *RobotsCache) fetchRobotsTxt(domain string) *robotsData {
	resp, err := rc.client.Get(domain + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	return parseRobotsTxt(string(body))
}

// parseRobotsTxt parses robots.txt content.
func parseRobotsTxt(content string) *robotsData {
	data := &robotsData{
		fetchedAt: time.Now(),
	}

	inOurSection := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			inOurSection = ua == "*" || strings.Contains(ua, "stylefeed")
		case "disallow":
			if inOurSection && value != "" {
				data.disallowed = append(data.disallowed, value)
			}
		case "allow":
			if inOurSection && value != "" {
				data.allowed = append(data.allowed, value)
			}
		case "crawl-delay":
			if inOurSection {
				var delay float64
				if _, err := fmt.Sscanf(value, "%f", &delay); err == nil {
					data.crawlDelay = time.Duration(delay * float64(time.Second))
				}
			}
		}
	}

	return data
}

// matchRobotsPattern checks if a URL path matches a robots.txt pattern.
// Supports * (any sequence) and $ (end of URL) wildcards.
func matchRobotsPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	segments := strings.Split(pattern, "*")
	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		idx := strings.Index(path[pos:], seg)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false // pattern must match from the start
		}
		pos += idx + len(seg)
	}

	if anchored {
		return pos == len(path)
	}
	return true
}
