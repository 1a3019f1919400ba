package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"routerwatch/internal/browser"
)

type fakeSession struct {
	title     string
	pageText  string
	html      string
	navErr    error
	navigated int
	closed    bool
}

func (s *fakeSession) Navigate(context.Context, string, time.Duration) error {
	s.navigated++
	return s.navErr
}
func (s *fakeSession) Title(context.Context) (string, error)      { return s.title, nil }
func (s *fakeSession) CurrentURL(context.Context) (string, error) { return "", nil }
func (s *fakeSession) PageText(context.Context) (string, error)   { return s.pageText, nil }
func (s *fakeSession) HTML(context.Context) (string, error)       { return s.html, nil }
func (s *fakeSession) Eval(context.Context, string, any) error    { return nil }
func (s *fakeSession) Screenshot(context.Context) ([]byte, error) { return nil, nil }
func (s *fakeSession) Close()                                     { s.closed = true }

type fakeFactory struct {
	next *fakeSession
	err  error
}

func (f *fakeFactory) NewSession(context.Context) (browser.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.next, nil
}

func articleHTML(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "<p>%s</p>", p)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestReadSkipsDocumentURLsWithoutNavigation(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	_, err := r.Read(context.Background(), "https://example.com/advisory.pdf")
	require.ErrorIs(t, err, ErrNonTextDocument)
	require.Zero(t, session.navigated, "document URLs must not be navigated")
}

func TestReadDetectsErrorPages(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		title:    "404 Not Found",
		pageText: "The page you requested could not be located.",
		html:     "<html></html>",
	}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	_, err := r.Read(context.Background(), "https://example.com/gone")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadExtractsLongParagraphs(t *testing.T) {
	t.Parallel()

	long1 := strings.Repeat("a", 40)
	long2 := strings.Repeat("b", 40)
	session := &fakeSession{
		title:    "Advisory",
		pageText: "irrelevant",
		html:     articleHTML("short", long1, long2),
	}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	text, err := r.Read(context.Background(), "https://example.com/advisory")
	require.NoError(t, err)
	require.Equal(t, long1+" "+long2, text)
}

func TestReadTruncatesTo300Runes(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		title:    "Advisory",
		pageText: "irrelevant",
		html:     articleHTML(strings.Repeat("長", 400)),
	}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	text, err := r.Read(context.Background(), "https://example.com/advisory")
	require.NoError(t, err)
	require.Equal(t, 303, len([]rune(text)))
	require.True(t, strings.HasSuffix(text, "..."))
}

func TestReadFallsBackToWholePageText(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		title:    "Advisory",
		pageText: "  spaced\nout   body   text ",
		html:     "<html><body><div>no paragraphs here</div></body></html>",
	}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	text, err := r.Read(context.Background(), "https://example.com/advisory")
	require.NoError(t, err)
	require.Equal(t, "spaced out body text", text)
}

func TestReadRestartsSessionOnceOnSessionFatal(t *testing.T) {
	t.Parallel()

	dead := &fakeSession{navErr: errors.New("dial tcp: connection refused")}
	replacement := &fakeSession{
		title:    "Advisory",
		pageText: "body",
		html:     articleHTML(strings.Repeat("x", 40)),
	}
	r := New(&fakeFactory{next: replacement}, dead, zap.NewNop(), time.Second)

	text, err := r.Read(context.Background(), "https://example.com/advisory")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("x", 40), text)
	require.True(t, dead.closed)
	require.Same(t, replacement, r.Session(), "reader keeps the replacement session")
}

func TestReadSecondSessionFatalYieldsUnreadable(t *testing.T) {
	t.Parallel()

	dead := &fakeSession{navErr: errors.New("invalid session")}
	alsoDead := &fakeSession{navErr: errors.New("invalid session")}
	r := New(&fakeFactory{next: alsoDead}, dead, zap.NewNop(), time.Second)

	_, err := r.Read(context.Background(), "https://example.com/advisory")
	require.ErrorIs(t, err, ErrUnreadable)
	require.Equal(t, 1, dead.navigated)
	require.Equal(t, 1, alsoDead.navigated, "only one restart is attempted")
}

func TestReadOrdinaryFailureYieldsUnreadable(t *testing.T) {
	t.Parallel()

	session := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	r := New(&fakeFactory{}, session, zap.NewNop(), time.Second)

	_, err := r.Read(context.Background(), "https://example.com/advisory")
	require.ErrorIs(t, err, ErrUnreadable)
	require.False(t, session.closed, "ordinary failures keep the session")
}
