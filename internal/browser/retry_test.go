package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSession struct {
	closed bool
}

func (s *stubSession) Navigate(context.Context, string, time.Duration) error { return nil }
func (s *stubSession) Title(context.Context) (string, error)                 { return "", nil }
func (s *stubSession) CurrentURL(context.Context) (string, error)            { return "", nil }
func (s *stubSession) PageText(context.Context) (string, error)              { return "", nil }
func (s *stubSession) HTML(context.Context) (string, error)                  { return "", nil }
func (s *stubSession) Eval(context.Context, string, any) error               { return nil }
func (s *stubSession) Screenshot(context.Context) ([]byte, error)            { return nil, nil }
func (s *stubSession) Close()                                                { s.closed = true }

type stubFactory struct {
	sessions []*stubSession
	err      error
}

func (f *stubFactory) NewSession(context.Context) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &stubSession{}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func TestDoWithRestartPassesThroughSuccess(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	first := &stubSession{}
	calls := 0

	got, err := DoWithRestart(context.Background(), factory, first, IsSessionFatal, func(Session) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Same(t, first, got)
	require.Equal(t, 1, calls)
	require.Empty(t, factory.sessions)
	require.False(t, first.closed)
}

func TestDoWithRestartKeepsOrdinaryFailures(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	first := &stubSession{}
	pageErr := errors.New("element not found")

	got, err := DoWithRestart(context.Background(), factory, first, IsSessionFatal, func(Session) error {
		return pageErr
	})
	require.ErrorIs(t, err, pageErr)
	require.Same(t, first, got)
	require.Empty(t, factory.sessions, "ordinary failure must not restart the session")
}

func TestDoWithRestartRestartsOnceOnSessionFatal(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	first := &stubSession{}
	calls := 0

	got, err := DoWithRestart(context.Background(), factory, first, IsSessionFatal, func(s Session) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("fetch: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.True(t, first.closed, "dead session must be torn down")
	require.Len(t, factory.sessions, 1)
	require.Same(t, factory.sessions[0], got)
}

func TestDoWithRestartSecondFailureSurfaces(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	first := &stubSession{}
	fatal := fmt.Errorf("chromedp run: target closed")

	got, err := DoWithRestart(context.Background(), factory, first, IsSessionFatal, func(Session) error {
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Len(t, factory.sessions, 1, "only one restart is allowed")
	require.Same(t, factory.sessions[0], got)
}

func TestDoWithRestartSkipsRestartWhenCallerCanceled(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{}
	first := &stubSession{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := DoWithRestart(ctx, factory, first, IsSessionFatal, func(Session) error {
		return fmt.Errorf("chromedp run: %w", context.Canceled)
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Same(t, first, got)
	require.False(t, first.closed, "a backing-out caller keeps its session")
	require.Empty(t, factory.sessions)
}

func TestIsSessionFatal(t *testing.T) {
	t.Parallel()

	require.False(t, IsSessionFatal(nil))
	require.False(t, IsSessionFatal(errors.New("no such element")))
	require.True(t, IsSessionFatal(errors.New("dial tcp: connection refused")))
	require.True(t, IsSessionFatal(errors.New("Invalid Session id")))
	require.True(t, IsSessionFatal(fmt.Errorf("navigate: %w", errors.New("websocket: bad handshake"))))
}
