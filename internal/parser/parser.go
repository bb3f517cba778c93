// Package parser turns fetched storefront and community pages into structured
// records. The selectors are a fixed mapping from the site's markup; all
// higher-level crawl decisions live in the crawler package.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var appIDRe = regexp.MustCompile(`/app/(\d+)`)

// ProductIDFromURL extracts the numeric product identifier from a store or
// community URL, or 0 when the URL does not reference a product.
func ProductIDFromURL(url string) int64 {
	m := appIDRe.FindStringSubmatch(url)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseInt parses an integer that may carry thousands separators ("1,204").
func parseInt(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloat parses a float that may carry thousands separators and trailing
// units ("1,892.3").
func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parsePrice extracts a numeric amount from a price label like "19,99€" or
// "$14.99". European decimal commas are normalized when no dot is present.
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func strPtr(s string) *string {
	return &s
}
