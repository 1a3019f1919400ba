package browser

import (
	"context"
	"fmt"
	"strings"
)

// Markers that indicate the browsing session itself is dead rather than
// a page-level failure. Message sniffing is unavoidable here: chromedp
// surfaces transport loss as formatted errors, not typed ones.
var sessionFatalMarkers = []string{
	"connection refused",
	"invalid session",
	"session closed",
	"target closed",
	"browser closed",
	"context canceled",
	"websocket",
	"chrome failed to start",
}

// IsSessionFatal reports whether err means the browsing session is
// unusable and a fresh session is worth trying.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionFatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// DoWithRestart runs fn against the current session. When fn fails and
// the predicate classifies the failure as session-fatal, the session is
// replaced through the factory and fn retried exactly once. The
// returned session is whichever one is live afterwards; the caller owns
// closing it.
func DoWithRestart(
	ctx context.Context,
	factory Factory,
	current Session,
	fatal func(error) bool,
	fn func(Session) error,
) (Session, error) {
	err := fn(current)
	if err == nil || !fatal(err) {
		return current, err
	}
	// A canceled caller context makes the failure look session-fatal
	// from the session's side; a replacement would be pointless then.
	if ctx.Err() != nil {
		return current, err
	}

	current.Close()
	fresh, startErr := factory.NewSession(ctx)
	if startErr != nil {
		return nil, fmt.Errorf("restart session: %w", startErr)
	}
	if err := fn(fresh); err != nil {
		return fresh, err
	}
	return fresh, nil
}
