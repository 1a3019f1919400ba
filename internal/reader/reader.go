// Package reader loads candidate URLs through the browsing collaborator
// and extracts a short body text for the stored description.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"routerwatch/internal/browser"
)

// Skip sentinels. Callers must treat these as "exclude this candidate
// entirely", distinct from a successful but low-content read.
var (
	// ErrNotFound means the page reads as an error page.
	ErrNotFound = errors.New("page is an error page")
	// ErrNonTextDocument means the URL points at a document file.
	ErrNonTextDocument = errors.New("url is a non-text document")
	// ErrUnreadable means the page could not be read at all.
	ErrUnreadable = errors.New("page is unreadable")
)

const (
	// maxDescription bounds the extracted text.
	maxDescription = 300
	// minParagraph filters boilerplate fragments out of the extraction.
	minParagraph = 30
	// errorScanWindow is how much leading body text is checked against
	// the error-page lexicon.
	errorScanWindow = 500
)

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true,
	".zip": true,
}

// Phrases that mark a page as an error page, in both interface
// languages the search surface serves.
var errorLexicon = []string{
	"404", "not found", "forbidden", "access denied",
	"connection refused", "this site can't be reached",
	"找不到", "無法連上", "拒絕連線", "沒有權限",
}

// Reader owns one browsing session across many reads and replaces it at
// most once per call when the session itself dies.
type Reader struct {
	factory    browser.Factory
	session    browser.Session
	logger     *zap.Logger
	navTimeout time.Duration
}

// New builds a Reader around an existing session.
func New(factory browser.Factory, session browser.Session, logger *zap.Logger, navTimeout time.Duration) *Reader {
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	return &Reader{
		factory:    factory,
		session:    session,
		logger:     logger,
		navTimeout: navTimeout,
	}
}

// Session returns the currently live session so the owner can close it.
func (r *Reader) Session() browser.Session {
	return r.session
}

// Read fetches the URL and returns extracted body text, or one of the
// skip sentinels. Session-fatal transport failures trigger exactly one
// session restart; any other failure, or a failure after the restart,
// yields ErrUnreadable.
func (r *Reader) Read(ctx context.Context, rawURL string) (string, error) {
	if isDocumentURL(rawURL) {
		return "", ErrNonTextDocument
	}

	var text string
	session, err := browser.DoWithRestart(ctx, r.factory, r.session, browser.IsSessionFatal,
		func(s browser.Session) error {
			var readErr error
			text, readErr = r.readPage(ctx, s, rawURL)
			return readErr
		})
	if session != nil {
		r.session = session
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		r.logger.Warn("article unreadable", zap.String("url", rawURL), zap.Error(err))
		return "", ErrUnreadable
	}
	return text, nil
}

func (r *Reader) readPage(ctx context.Context, s browser.Session, rawURL string) (string, error) {
	if err := s.Navigate(ctx, rawURL, r.navTimeout); err != nil {
		return "", fmt.Errorf("navigate article: %w", err)
	}

	title, err := s.Title(ctx)
	if err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	body, err := s.PageText(ctx)
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	if looksLikeErrorPage(title, body) {
		return "", ErrNotFound
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(t) > minParagraph {
			paragraphs = append(paragraphs, t)
		}
	})

	text := strings.Join(paragraphs, " ")
	if text == "" {
		text = normalizeWhitespace(body)
	}
	return truncate(text, maxDescription), nil
}

func looksLikeErrorPage(title, body string) bool {
	head := body
	if runes := []rune(body); len(runes) > errorScanWindow {
		head = string(runes[:errorScanWindow])
	}
	haystack := strings.ToLower(title + " " + head)
	for _, phrase := range errorLexicon {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

func isDocumentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return documentExtensions[ext]
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
