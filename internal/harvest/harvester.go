// Package harvest runs search queries against the browsing collaborator
// and turns result pages into candidate records.
package harvest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"routerwatch/internal/browser"
	"routerwatch/internal/news"
)

const searchBase = "https://www.google.com/search"

// Consent banners show up depending on the exit IP; dismissing them is
// best-effort and failure to do so just degrades the parse.
const consentScript = `(function() {
	var buttons = document.querySelectorAll('button');
	for (var i = 0; i < buttons.length; i++) {
		var t = buttons[i].textContent || '';
		if (t.indexOf('Accept') !== -1 || t.indexOf('Agree') !== -1) {
			buttons[i].click();
			return true;
		}
	}
	return false;
})()`

// Harvester executes one search task at a time against a shared
// session and replaces that session at most once per task when it dies.
type Harvester struct {
	factory    browser.Factory
	session    browser.Session
	filter     relevanceFilter
	logger     *zap.Logger
	navTimeout time.Duration
}

// relevanceFilter is the slice of the relevance package the harvester
// needs; declared locally so tests can substitute it.
type relevanceFilter interface {
	IsRelevant(title, snippet string) bool
}

// New builds a Harvester around an existing session.
func New(factory browser.Factory, session browser.Session, filter relevanceFilter, logger *zap.Logger, navTimeout time.Duration) *Harvester {
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	return &Harvester{
		factory:    factory,
		session:    session,
		filter:     filter,
		logger:     logger,
		navTimeout: navTimeout,
	}
}

// Session returns the currently live session so the owner can close it.
func (h *Harvester) Session() browser.Session {
	return h.session
}

// Harvest runs one query and returns the relevant candidates found.
// Malformed entries are skipped; they never abort the batch.
func (h *Harvester) Harvest(ctx context.Context, task news.SearchTask) ([]news.Candidate, error) {
	target := buildSearchURL(task)
	h.logger.Info("running search",
		zap.String("category", task.Category),
		zap.String("kind", string(task.Kind)),
		zap.String("lang", task.Lang),
	)

	var html string
	session, err := browser.DoWithRestart(ctx, h.factory, h.session, browser.IsSessionFatal,
		func(s browser.Session) error {
			var fetchErr error
			html, fetchErr = h.fetchResults(ctx, s, target)
			return fetchErr
		})
	if session != nil {
		h.session = session
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	strategy, entries := selectEntries(doc)
	if entries == nil {
		h.logger.Warn("no result entries matched any selector strategy",
			zap.String("category", task.Category))
		return nil, nil
	}
	h.logger.Debug("selector strategy matched",
		zap.String("strategy", strategy),
		zap.Int("entries", entries.Length()),
	)

	var candidates []news.Candidate
	entries.Each(func(_ int, entry *goquery.Selection) {
		candidate, err := extractCandidate(entry)
		if err != nil {
			h.logger.Debug("skipping malformed entry", zap.Error(err))
			return
		}
		if !h.filter.IsRelevant(candidate.Title, candidate.Snippet) {
			return
		}
		candidate.Category = task.Category
		candidates = append(candidates, candidate)
	})

	h.logger.Info("search finished",
		zap.String("category", task.Category),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (h *Harvester) fetchResults(ctx context.Context, s browser.Session, target string) (string, error) {
	if err := s.Navigate(ctx, target, h.navTimeout); err != nil {
		return "", fmt.Errorf("navigate search page: %w", err)
	}

	var dismissed bool
	if err := s.Eval(ctx, consentScript, &dismissed); err == nil && dismissed {
		h.logger.Debug("dismissed consent banner")
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read search page: %w", err)
	}
	return html, nil
}

func buildSearchURL(task news.SearchTask) string {
	q := url.Values{}
	q.Set("q", task.Query)
	if task.Kind == news.KindNews {
		q.Set("tbm", "nws")
		q.Set("tbs", "qdr:m6")
	} else {
		q.Set("tbs", "qdr:y")
	}
	if task.Lang != "" {
		q.Set("hl", task.Lang)
	}
	return searchBase + "?" + q.Encode()
}
