package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Config controls the chromedp-backed sessions.
type Config struct {
	UserAgent  string
	NavTimeout time.Duration
}

// ChromeFactory creates chromedp sessions with a dedicated browser
// process per session, so a wedged page never outlives its item.
type ChromeFactory struct {
	cfg Config
}

// NewChromeFactory builds a factory with sane defaults.
func NewChromeFactory(cfg Config) *ChromeFactory {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 20 * time.Second
	}
	return &ChromeFactory{cfg: cfg}
}

// The search surface serves automated browsers a degraded page, so the
// session hides the usual automation tells before any navigation.
const webdriverPatch = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// NewSession starts a fresh headless browser.
func (f *ChromeFactory) NewSession(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	patch := chromedp.ActionFunc(func(c context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(webdriverPatch).Do(c)
		return err
	})
	if err := chromedp.Run(taskCtx, patch); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeSession{
		ctx:         taskCtx,
		taskCancel:  taskCancel,
		allocCancel: allocCancel,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	taskCancel  context.CancelFunc
	allocCancel context.CancelFunc
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if errors.Is(err, context.DeadlineExceeded) && s.ctx.Err() == nil {
		// Slow page: stop loading and proceed with partial content.
		stop := chromedp.ActionFunc(func(c context.Context) error {
			return page.StopLoading().Do(c)
		})
		_ = chromedp.Run(s.ctx, stop)
		return nil
	}
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (s *chromeSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *chromeSession) PageText(ctx context.Context) (string, error) {
	var text string
	script := `document.body ? document.body.innerText : ''`
	if err := s.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return text, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Eval(ctx context.Context, js string, out any) error {
	if err := s.run(ctx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromeSession) Close() {
	s.taskCancel()
	s.allocCancel()
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, actions...)
}
