package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	postedRe   = regexp.MustCompile(`Posted: (.+)`)
	hoursRe    = regexp.MustCompile(`([\d,.]+) hrs`)
	helpfulRe  = regexp.MustCompile(`([\d,]+) people found this review helpful`)
	funnyRe    = regexp.MustCompile(`([\d,]+) people found this review funny`)
	productsRe = regexp.MustCompile(`([\d,]+) product`)
	profileRe  = regexp.MustCompile(`.*/profiles/(.+)/`)
	vanityRe   = regexp.MustCompile(`.*/id/(.+)/`)
)

// ReviewRecord is one review card extracted from a feed page. Product and
// page metadata are stamped on by the caller, which knows the page's logical
// position.
type ReviewRecord struct {
	ProductID int64
	Page      int
	PageOrder int

	Recommended   *string
	Date          *string
	Text          *string
	Hours         *float64
	Compensation  *string
	FoundHelpful  *int
	FoundFunny    *int
	FoundAwarding *string
	EarlyAccess   *bool

	UserID   string
	Username *string
	Products *int

	// Incomplete marks a card missing its username or text. The caller keeps
	// the raw page around and may re-request it.
	Incomplete bool
}

// ContinuationForm is the feed's "load more" affordance: an HTML form whose
// GET re-submission yields the next page.
type ContinuationForm struct {
	Action string
	Values url.Values
}

// URL renders the form as the GET request URL it would submit to.
func (f *ContinuationForm) URL() string {
	if len(f.Values) == 0 {
		return f.Action
	}
	sep := "?"
	if strings.Contains(f.Action, "?") {
		sep = "&"
	}
	return f.Action + sep + f.Values.Encode()
}

// ReviewPage is the parsed content of one review feed page.
type ReviewPage struct {
	Reviews []*ReviewRecord
	// Form is nil when the page has no continuation, i.e. the feed ended.
	Form *ContinuationForm
}

// ParseReviewPage extracts all review cards and the continuation form from a
// feed page body.
func ParseReviewPage(body []byte) (*ReviewPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse review page: %w", err)
	}

	page := &ReviewPage{}

	doc.Find("div.apphub_Card").Each(func(i int, card *goquery.Selection) {
		page.Reviews = append(page.Reviews, parseReviewCard(card, i))
	})

	doc.Find(`form[id*="MoreContentForm"]`).EachWithBreak(func(_ int, form *goquery.Selection) bool {
		action, ok := form.Attr("action")
		if !ok {
			return true
		}
		values := url.Values{}
		form.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, hasName := input.Attr("name")
			if !hasName {
				return
			}
			value, _ := input.Attr("value")
			values.Set(name, value)
		})
		page.Form = &ContinuationForm{Action: action, Values: values}
		return false
	})

	return page, nil
}

func parseReviewCard(card *goquery.Selection, order int) *ReviewRecord {
	rec := &ReviewRecord{PageOrder: order}

	if title := text(card, ".title"); title != "" {
		rec.Recommended = strPtr(title)
	}
	if m := postedRe.FindStringSubmatch(text(card, ".date_posted")); m != nil {
		rec.Date = strPtr(strings.TrimSpace(m[1]))
	}
	if content := text(card, ".apphub_CardTextContent"); content != "" {
		rec.Text = strPtr(content)
	}
	if m := hoursRe.FindStringSubmatch(text(card, ".hours")); m != nil {
		if hours, ok := parseFloat(m[1]); ok {
			rec.Hours = &hours
		}
	}
	if comp := text(card, ".received_compensation"); comp != "" {
		rec.Compensation = strPtr(comp)
	}

	author := card.Find(".apphub_CardContentAuthorName a").First()
	if href, ok := author.Attr("href"); ok {
		if m := profileRe.FindStringSubmatch(href); m != nil {
			rec.UserID = m[1]
		} else if m := vanityRe.FindStringSubmatch(href); m != nil {
			rec.UserID = m[1]
		}
	}
	if name := strings.TrimSpace(author.Text()); name != "" {
		rec.Username = strPtr(name)
	}
	if m := productsRe.FindStringSubmatch(text(card, ".apphub_CardContentMoreLink")); m != nil {
		if n, ok := parseInt(m[1]); ok {
			rec.Products = &n
		}
	}

	feedback := text(card, ".found_helpful")
	if m := helpfulRe.FindStringSubmatch(feedback); m != nil {
		if n, ok := parseInt(m[1]); ok {
			rec.FoundHelpful = &n
		}
	}
	if m := funnyRe.FindStringSubmatch(feedback); m != nil {
		if n, ok := parseInt(m[1]); ok {
			rec.FoundFunny = &n
		}
	}
	if award := text(card, ".review_award_aggregated"); award != "" {
		rec.FoundAwarding = strPtr(award)
	}

	early := card.Find(".early_access_review").Length() > 0
	rec.EarlyAccess = &early

	rec.Incomplete = rec.Username == nil || rec.Text == nil

	return rec
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}
