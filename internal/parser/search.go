package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SearchPage is one page of store search results: the product links it lists
// and the link to the next result page, if any.
type SearchPage struct {
	ProductURLs []string
	NextURL     string
}

// ParseSearchPage extracts product links from a search result page and the
// pagination link to the following page.
func ParseSearchPage(body []byte) (*SearchPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	page := &SearchPage{}
	doc.Find("#search_result_container a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.Contains(href, "/app/") {
			return
		}
		page.ProductURLs = append(page.ProductURLs, href)
	})

	// The pagination footer repeats ">" links for the next page; the last
	// anchor in the right-hand block is the forward one.
	doc.Find(".search_pagination_right a").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != ">" {
			return
		}
		if href, ok := s.Attr("href"); ok {
			page.NextURL = href
		}
	})

	return page, nil
}
