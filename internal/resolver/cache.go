package resolver

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CategoryURLs maps a category identifier to a known-good listing URL.
type CategoryURLs map[string]string

// LoadCategoryURLs reads a category→URL cache file. Each line is
// "category_id=url"; blank lines and lines starting with # are
// ignored. A missing or unset path yields an empty map.
func LoadCategoryURLs(path string) (CategoryURLs, error) {
	urls := make(CategoryURLs)
	if path == "" {
		return urls, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return urls, fmt.Errorf("opening category url cache: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, url, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		id, url = strings.TrimSpace(id), strings.TrimSpace(url)
		if id == "" || url == "" {
			continue
		}
		urls[id] = url
	}
	if err := scanner.Err(); err != nil {
		return urls, fmt.Errorf("reading category url cache: %w", err)
	}
	return urls, nil
}
