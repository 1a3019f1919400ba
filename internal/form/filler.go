// Package form drives the external transcription form through the
// browsing collaborator.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"routerwatch/internal/browser"
	"routerwatch/internal/news"
)

// Field ordering contract of the form: five short-answer inputs in the
// order title, url, publish_date, source, capture_timestamp, plus one
// paragraph field for the description.
const requiredInputs = 5

// maxDescriptionChars bounds the paragraph field; the form rejects
// longer answers.
const maxDescriptionChars = 500

var submitMarkers = []string{"已記錄", "recorded"}

// ErrNoAcknowledgment is returned in strict mode when neither the
// acknowledgment phrase nor any other success signal appeared.
var ErrNoAcknowledgment = errors.New("no submission acknowledgment detected")

// Config tunes the driver.
type Config struct {
	// URL is the form's input URL.
	URL string
	// LenientSuccess treats a post-submit URL change as success when
	// the acknowledgment phrase never appears. The heuristic is a
	// guess, so it stays a policy knob rather than wired-in behavior.
	LenientSuccess bool
	// SubmitWait bounds how long the driver waits for acknowledgment.
	SubmitWait time.Duration
	// NavTimeout bounds the initial form load.
	NavTimeout time.Duration
	// ScreenshotPrefix is the blob path prefix for failure screenshots.
	ScreenshotPrefix string
}

// Submission carries the six transcribed fields.
type Submission struct {
	Title       string
	URL         string
	PublishDate string
	Source      string
	Description string
	CapturedAt  string
}

// Filler fills and submits the form once over a dedicated session.
type Filler struct {
	session browser.Session
	blobs   news.BlobStore
	clock   news.Clock
	logger  *zap.Logger
	cfg     Config
}

// New builds a Filler. blobs may be nil to disable failure screenshots.
func New(session browser.Session, blobs news.BlobStore, clock news.Clock, logger *zap.Logger, cfg Config) *Filler {
	if cfg.SubmitWait <= 0 {
		cfg.SubmitWait = 10 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	return &Filler{
		session: session,
		blobs:   blobs,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}
}

// Submit fills every field and submits the form. Any error means the
// submission did not verifiably succeed.
func (f *Filler) Submit(ctx context.Context, sub Submission) error {
	if err := f.submit(ctx, sub); err != nil {
		f.captureFailure(ctx)
		return err
	}
	return nil
}

func (f *Filler) submit(ctx context.Context, sub Submission) error {
	if err := f.session.Navigate(ctx, f.cfg.URL, f.cfg.NavTimeout); err != nil {
		return fmt.Errorf("open form: %w", err)
	}
	if err := f.waitFor(ctx, `document.querySelectorAll('div[role="listitem"]').length > 0`, f.cfg.NavTimeout); err != nil {
		return fmt.Errorf("wait for form fields: %w", err)
	}

	var inputCount int
	if err := f.session.Eval(ctx, `document.querySelectorAll('input[type="text"]').length`, &inputCount); err != nil {
		return fmt.Errorf("count form inputs: %w", err)
	}
	if inputCount < requiredInputs {
		return fmt.Errorf("form layout changed: want %d text inputs, found %d", requiredInputs, inputCount)
	}

	var filled bool
	if err := f.session.Eval(ctx, fillScript(sub), &filled); err != nil {
		return fmt.Errorf("fill form fields: %w", err)
	}
	if !filled {
		return fmt.Errorf("fill script reported failure")
	}

	var clicked bool
	if err := f.session.Eval(ctx, submitClickScript, &clicked); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	if !clicked {
		return fmt.Errorf("submit control not found")
	}

	return f.verify(ctx)
}

// verify waits for the localized acknowledgment phrase; when it never
// shows up, a changed URL counts as a weaker positive signal in
// lenient mode.
func (f *Filler) verify(ctx context.Context) error {
	deadline := time.Now().Add(f.cfg.SubmitWait)
	for {
		text, err := f.session.PageText(ctx)
		if err != nil {
			return fmt.Errorf("read post-submit page: %w", err)
		}
		lower := strings.ToLower(text)
		for _, marker := range submitMarkers {
			if strings.Contains(lower, marker) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	if f.cfg.LenientSuccess {
		current, err := f.session.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("read post-submit url: %w", err)
		}
		if current != "" && current != f.cfg.URL {
			f.logger.Warn("acknowledgment missing, accepting url change as success",
				zap.String("url", current))
			return nil
		}
	}
	return ErrNoAcknowledgment
}

func (f *Filler) waitFor(ctx context.Context, condition string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var ok bool
		if err := f.session.Eval(ctx, condition, &ok); err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (f *Filler) captureFailure(ctx context.Context) {
	if f.blobs == nil {
		return
	}
	data, err := f.session.Screenshot(ctx)
	if err != nil {
		f.logger.Debug("failure screenshot unavailable", zap.Error(err))
		return
	}
	name := fmt.Sprintf("form_failure_%d.png", f.clock.Now().Unix())
	path := name
	if f.cfg.ScreenshotPrefix != "" {
		path = strings.TrimSuffix(f.cfg.ScreenshotPrefix, "/") + "/" + name
	}
	uri, err := f.blobs.PutObject(ctx, path, "image/png", data)
	if err != nil {
		f.logger.Warn("store failure screenshot", zap.Error(err))
		return
	}
	f.logger.Info("stored failure screenshot", zap.String("uri", uri))
}

// fillScript sets the five ordered inputs plus the first paragraph
// field and dispatches input events so the form registers the values.
func fillScript(sub Submission) string {
	desc := sub.Description
	if runes := []rune(desc); len(runes) > maxDescriptionChars {
		desc = string(runes[:maxDescriptionChars])
	}
	values := []string{sub.Title, sub.URL, sub.PublishDate, sub.Source, sub.CapturedAt}
	encoded, _ := json.Marshal(values)
	encodedDesc, _ := json.Marshal(desc)
	return fmt.Sprintf(`(function() {
	var inputs = document.querySelectorAll('input[type="text"]');
	var values = %s;
	if (inputs.length < values.length) { return false; }
	for (var i = 0; i < values.length; i++) {
		inputs[i].value = values[i];
		inputs[i].dispatchEvent(new Event('input', {bubbles: true}));
	}
	var areas = document.querySelectorAll('textarea');
	if (areas.length > 0) {
		areas[0].value = %s;
		areas[0].dispatchEvent(new Event('input', {bubbles: true}));
	}
	return true;
})()`, encoded, encodedDesc)
}

// The submit control is located by its localized label text and clicked
// from script to sidestep overlay interception.
const submitClickScript = `(function() {
	var spans = document.querySelectorAll('span');
	for (var i = 0; i < spans.length; i++) {
		var t = (spans[i].textContent || '').trim();
		if (t === '提交' || t === 'Submit') {
			spans[i].click();
			return true;
		}
	}
	return false;
})()`
