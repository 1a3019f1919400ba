// Package dates converts the loosely formatted bilingual date text on
// search result cards into canonical YYYY-MM-DD strings.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"routerwatch/internal/news"
)

// Layout is the canonical calendar date format.
const Layout = "2006-01-02"

var absoluteLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

var firstNumber = regexp.MustCompile(`\d+`)

// Normalizer turns raw date text into canonical dates. It is total: any
// unparseable input falls back to the current date, because a failed
// parse must never abort ingestion of an otherwise valid item.
type Normalizer struct {
	clock news.Clock
}

// New builds a Normalizer on the given clock.
func New(clock news.Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Normalize resolves raw into a YYYY-MM-DD string. Rules are checked in
// order, first match wins: relative "ago"/"前" phrases, Yesterday/昨天,
// English month-name absolute forms, the Chinese YYYY年MM月DD日 form,
// then today.
func (n *Normalizer) Normalize(raw string) string {
	today := n.clock.Now()
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)

	if strings.Contains(lower, "ago") || strings.Contains(s, "前") {
		amount := 0
		if m := firstNumber.FindString(s); m != "" {
			amount, _ = strconv.Atoi(m)
		}
		switch {
		case strings.Contains(lower, "min"), strings.Contains(lower, "hour"),
			strings.Contains(s, "分鐘"), strings.Contains(s, "小時"):
			return today.Format(Layout)
		case strings.Contains(lower, "day"), strings.Contains(s, "天"):
			return today.AddDate(0, 0, -amount).Format(Layout)
		case strings.Contains(lower, "week"), strings.Contains(s, "週"):
			return today.AddDate(0, 0, -7*amount).Format(Layout)
		case strings.Contains(lower, "month"), strings.Contains(s, "個月"):
			// Approximate: fixed 30-day months, no calendar arithmetic.
			return today.AddDate(0, 0, -30*amount).Format(Layout)
		}
	}

	if strings.Contains(lower, "yesterday") || strings.Contains(s, "昨天") {
		return today.AddDate(0, 0, -1).Format(Layout)
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(Layout)
		}
	}

	if t, err := time.Parse("2006年1月2日", s); err == nil {
		return t.Format(Layout)
	}

	return today.Format(Layout)
}
