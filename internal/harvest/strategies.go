package harvest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"routerwatch/internal/news"
)

// entryStrategy locates result entries in a rendered search page. The
// markup changes over time, so strategies are tried in order and the
// first one yielding entries wins; "no strategy matched" is a normal
// outcome, not an error.
type entryStrategy struct {
	name     string
	selector string
}

var entryStrategies = []entryStrategy{
	{name: "news-card", selector: "div.SoaBEf"},
	{name: "generic-result", selector: "div.MjjYud"},
}

func selectEntries(doc *goquery.Document) (string, *goquery.Selection) {
	for _, strategy := range entryStrategies {
		if sel := doc.Find(strategy.selector); sel.Length() > 0 {
			return strategy.name, sel
		}
	}
	return "", nil
}

// extractCandidate pulls title, link, best-effort snippet and raw date
// text out of one result entry.
func extractCandidate(entry *goquery.Selection) (news.Candidate, error) {
	title := strings.TrimSpace(entry.Find("div[role='heading']").First().Text())
	if title == "" {
		return news.Candidate{}, fmt.Errorf("entry has no heading")
	}
	href, ok := entry.Find("a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return news.Candidate{}, fmt.Errorf("entry has no link")
	}

	snippet := strings.TrimSpace(entry.Find(".GI74Re").First().Text())

	dateRaw := strings.TrimSpace(entry.Find(".OSrXXb span").First().Text())
	if dateRaw == "" {
		dateRaw = "Today"
	}

	return news.Candidate{
		Title:   title,
		URL:     strings.TrimSpace(href),
		Snippet: snippet,
		DateRaw: dateRaw,
	}, nil
}
