// Package browser wraps headless Chrome behind the capability set the
// pipelines need. Selector strings and scripts stay with the callers;
// this package only knows how to drive a page.
package browser

import (
	"context"
	"time"
)

// Session is one live browsing session. All methods are blocking and
// honor the supplied context for early cancellation.
type Session interface {
	// Navigate loads a URL. When the page does not finish loading
	// within the timeout, loading is stopped and whatever content
	// arrived is kept; that is not reported as an error.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Title returns the current page title.
	Title(ctx context.Context) (string, error)
	// CurrentURL returns the location the session ended up at.
	CurrentURL(ctx context.Context) (string, error)
	// PageText returns the visible body text of the current page.
	PageText(ctx context.Context) (string, error)
	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)
	// Eval runs a script in the page and unmarshals its result into
	// out; out may be nil to discard the result.
	Eval(ctx context.Context, js string, out any) error
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close tears the session down unconditionally.
	Close()
}

// Factory creates sessions. Each pipeline stage owns at most one
// session at a time; the submission pipeline opens one per item.
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
}
