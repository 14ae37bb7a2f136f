package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/config"
)

// ChromeFactory opens chromedp browser windows configured for the
// portal: dedicated download directory per window, headless flags from
// config.
type ChromeFactory struct {
	config config.BrowserConfig
	logger *logrus.Logger
}

// ChromeBrowser implements Browser over a chromedp context.
type ChromeBrowser struct {
	id            string
	ctx           context.Context
	cancel        context.CancelFunc
	downloadDir   string
	downloadTTL   time.Duration
	pageTimeout   time.Duration
	navigateRetry int
	logger        *logrus.Logger
	healthy       bool
}

// NewChromeFactory creates a browser factory.
func NewChromeFactory(cfg config.BrowserConfig, logger *logrus.Logger) *ChromeFactory {
	return &ChromeFactory{config: cfg, logger: logger}
}

// Open launches a fresh Chrome window with its own download directory.
func (f *ChromeFactory) Open(ctx context.Context) (Browser, error) {
	id := uuid.New().String()[:8]

	downloadDir := filepath.Join(f.config.DownloadDir, id)
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.WindowSize(f.config.WindowWidth, f.config.WindowHeight),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"),
	}

	if f.config.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	b := &ChromeBrowser{
		id:            id,
		ctx:           browserCtx,
		cancel:        func() { ctxCancel(); allocCancel() },
		downloadDir:   downloadDir,
		downloadTTL:   f.config.DownloadWait,
		pageTimeout:   f.config.PageTimeout,
		navigateRetry: f.config.NavigateRetry,
		logger:        f.logger,
		healthy:       true,
	}

	healthCtx, healthCancel := context.WithTimeout(browserCtx, 15*time.Second)
	defer healthCancel()

	err := chromedp.Run(healthCtx,
		chromedp.Navigate("about:blank"),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}

	f.logger.WithField("browser_id", id).Debug("Browser opened")
	return b, nil
}

// Health returns factory health status
func (f *ChromeFactory) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":       "healthy",
		"headless":     f.config.Headless,
		"download_dir": f.config.DownloadDir,
	}
}

// Navigate loads a URL, retrying transient failures. The portal drops
// connections under load; a retry usually lands.
func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	if !b.healthy {
		return fmt.Errorf("browser is not healthy")
	}

	attempts := b.navigateRetry
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = b.run(ctx, chromedp.Navigate(url)); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.WithFields(logrus.Fields{
			"url":     url,
			"attempt": i + 1,
			"error":   err.Error(),
		}).Warn("Navigation failed")
	}
	return fmt.Errorf("navigation to %s failed after %d attempts: %w", url, attempts, err)
}

// WaitVisible waits for an element to become visible
func (b *ChromeBrowser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector))
}

// Click clicks on an element
func (b *ChromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Click(selector))
}

// SendKeys types text into an element
func (b *ChromeBrowser) SendKeys(ctx context.Context, selector, text string) error {
	return b.run(ctx, chromedp.SendKeys(selector, text))
}

// Clear clears the value of an input element
func (b *ChromeBrowser) Clear(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Clear(selector))
}

// Text gets text content from an element
func (b *ChromeBrowser) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := b.run(ctx, chromedp.Text(selector, &text))
	return text, err
}

// HTML gets the outer HTML of the page
func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

// Screenshot captures a single element as PNG bytes
func (b *ChromeBrowser) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := b.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible))
	return buf, err
}

// Evaluate executes JavaScript and returns its result
func (b *ChromeBrowser) Evaluate(ctx context.Context, script string) (interface{}, error) {
	var result interface{}
	err := b.run(ctx, chromedp.Evaluate(script, &result))
	return result, err
}

// Exists reports whether an element is present in the DOM right now
func (b *ChromeBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	var present bool
	err := b.run(ctx, chromedp.Evaluate(script, &present))
	return present, err
}

// AutoConfirmDialogs accepts every JavaScript dialog the page raises
// for the rest of this browser's life. The portal confirms certificate
// downloads through confirm() popups.
func (b *ChromeBrowser) AutoConfirmDialogs(ctx context.Context) error {
	chromedp.ListenTarget(b.ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				err := chromedp.Run(b.ctx, page.HandleJavaScriptDialog(true))
				if err != nil {
					b.logger.WithError(err).Warn("Failed to confirm dialog")
				}
			}()
		}
	})
	return nil
}

// WaitDownload polls the download directory until a finished file shows
// up. Chrome writes in-progress downloads with a .crdownload suffix.
func (b *ChromeBrowser) WaitDownload(ctx context.Context) (string, error) {
	deadline := time.Now().Add(b.downloadTTL)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}

		entries, err := os.ReadDir(b.downloadDir)
		if err != nil {
			return "", fmt.Errorf("failed to read download dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasSuffix(entry.Name(), ".crdownload") {
				continue
			}
			return filepath.Join(b.downloadDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no download completed within %s", b.downloadTTL)
}

// Close closes the browser and removes its download directory.
func (b *ChromeBrowser) Close() error {
	b.healthy = false
	if b.cancel != nil {
		b.cancel()
	}
	if b.downloadDir != "" {
		if err := os.RemoveAll(b.downloadDir); err != nil {
			b.logger.WithError(err).Warn("Failed to remove download dir")
		}
	}
	return nil
}

// IsHealthy checks if the browser is still usable
func (b *ChromeBrowser) IsHealthy() bool {
	return b.healthy
}

// ID returns the browser identifier
func (b *ChromeBrowser) ID() string {
	return b.id
}

// run executes chromedp actions against this browser, bounded by the
// caller's deadline or, failing that, the configured page timeout.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := b.ctx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(b.ctx, deadline)
	} else if b.pageTimeout > 0 {
		runCtx, cancel = context.WithTimeout(b.ctx, b.pageTimeout)
	}
	if cancel != nil {
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}
