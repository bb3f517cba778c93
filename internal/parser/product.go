package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	detailsSplitRe = regexp.MustCompile(`<br/?>|<div class="dev_row">|</div>`)
	tagStripRe     = regexp.MustCompile(`<[^<]+?>`)
	blankRe        = regexp.MustCompile(`[\r\t]`)
	newlineRunRe   = regexp.MustCompile(`[\r\t\n]+`)
	nReviewsRe     = regexp.MustCompile(`\(([\d,]+)\)`)
)

// ProductRecord is a product page reduced to the fields the store persists.
type ProductRecord struct {
	ID         int64
	URL        string
	ReviewsURL string
	NewsURL    string

	Title              *string
	Developer          *string
	Publisher          *string
	ReleaseDate        *string
	DescriptionAbout   *string
	DescriptionReviews *string
	AppName            *string
	Sentiment          *string

	Genres []string
	Specs  []string
	Tags   []string

	DiscountPrice *float64
	Price         *float64
	EarlyAccess   *bool
	NReviews      *int
	Metascore     *float64
}

// ParseProductPage extracts a ProductRecord from a product page body. The
// review feed and news URLs are derived from the product id against the given
// site roots.
func ParseProductPage(body []byte, pageURL, communityBase, storeBase string) (*ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	id := ProductIDFromURL(pageURL)
	if id == 0 {
		return nil, fmt.Errorf("no product id in url: %s", pageURL)
	}

	rec := &ProductRecord{
		ID:         id,
		URL:        pageURL,
		ReviewsURL: fmt.Sprintf("%s/app/%d/reviews/?browsefilter=mostrecent&p=1", communityBase, id),
		NewsURL:    fmt.Sprintf("%s/news/app/%d", storeBase, id),
	}

	parseDetailsBlock(doc, rec)

	if about := cleanBlock(doc.Find("#game_area_description")); about != "" {
		rec.DescriptionAbout = strPtr(about)
	}
	if reviews := cleanBlock(doc.Find("#game_area_reviews")); reviews != "" {
		rec.DescriptionReviews = strPtr(reviews)
	}
	if name := strings.TrimSpace(doc.Find(".apphub_AppName").First().Text()); name != "" {
		rec.AppName = strPtr(name)
	}

	doc.Find("a.game_area_details_specs_ctn").Each(func(_ int, s *goquery.Selection) {
		if spec := strings.TrimSpace(s.Text()); spec != "" {
			rec.Specs = append(rec.Specs, spec)
		}
	})
	doc.Find("a.app_tag").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			rec.Tags = append(rec.Tags, tag)
		}
	})

	parsePriceBlock(doc, rec)

	if sentiment := strings.TrimSpace(doc.Find(".game_review_summary").First().Text()); sentiment != "" {
		rec.Sentiment = strPtr(sentiment)
	}
	if m := nReviewsRe.FindStringSubmatch(doc.Find(".responsive_hidden").Text()); m != nil {
		if n, ok := parseInt(m[1]); ok {
			rec.NReviews = &n
		}
	}
	if score := strings.TrimSpace(doc.Find(`#game_area_metascore div[class*="score"]`).First().Text()); score != "" {
		if f, ok := parseFloat(score); ok {
			rec.Metascore = &f
		}
	}

	early := doc.Find(".early_access_header").Length() > 0
	rec.EarlyAccess = &early

	return rec, nil
}

// parseDetailsBlock walks the publication details block line by line, the
// labels mapping lifted straight from the page markup.
func parseDetailsBlock(doc *goquery.Document, rec *ProductRecord) {
	html, err := doc.Find(".details_block").First().Html()
	if err != nil || html == "" {
		return
	}

	for _, line := range detailsSplitRe.Split(html, -1) {
		line = tagStripRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(blankRe.ReplaceAllString(line, ""))
		line = strings.ReplaceAll(line, "\n", " ")

		for _, prop := range []struct {
			label string
			apply func(string)
		}{
			{"Title:", func(v string) { rec.Title = strPtr(v) }},
			{"Genre:", func(v string) { rec.Genres = append(rec.Genres, splitCSV(v)...) }},
			{"Developer:", func(v string) { rec.Developer = strPtr(v) }},
			{"Publisher:", func(v string) { rec.Publisher = strPtr(v) }},
			{"Release Date:", func(v string) { rec.ReleaseDate = strPtr(v) }},
		} {
			if strings.Contains(line, prop.label) {
				if v := strings.TrimSpace(strings.Replace(line, prop.label, "", 1)); v != "" {
					prop.apply(v)
				}
			}
		}
	}
}

func parsePriceBlock(doc *goquery.Document, rec *ProductRecord) {
	priceText := strings.TrimSpace(doc.Find(".game_purchase_price").First().Text())
	if priceText == "" {
		priceText = strings.TrimSpace(doc.Find(".discount_original_price").First().Text())
		if discount, ok := parsePrice(doc.Find(".discount_final_price").First().Text()); ok {
			rec.DiscountPrice = &discount
		}
	}
	if price, ok := parsePrice(priceText); ok {
		rec.Price = &price
	}
}

// cleanBlock strips tags from a description block and collapses whitespace
// runs into single newlines.
func cleanBlock(s *goquery.Selection) string {
	html, err := s.Html()
	if err != nil || html == "" {
		return ""
	}
	line := tagStripRe.ReplaceAllString(html, "")
	line = newlineRunRe.ReplaceAllString(line, "\n")
	return strings.TrimSpace(line)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
