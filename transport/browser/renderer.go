package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/wricardo/wsgateway/gateway/config"
)

// ErrEmptyURL is returned when Screenshot is called without a target.
var ErrEmptyURL = errors.New("url is required")

// scrollScript scrolls the viewport by the page height so lazy content is
// loaded before capture.
const scrollScript = `window.scrollBy(0, document.body.scrollHeight)`

// Renderer captures pages with a headless Chrome instance. A fresh browser
// is started for each capture.
type Renderer struct {
	cfg    config.ScreenshotConfig
	logger *slog.Logger
}

// NewRenderer creates a renderer from cfg. Zero timeout or quality fall back
// to the config defaults.
func NewRenderer(cfg config.ScreenshotConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultScreenshotTimeout
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = config.DefaultScreenshotQuality
	}
	return &Renderer{cfg: cfg, logger: logger.With("component", "browser")}
}

// AllocatorOptions returns the Chrome flags derived from the config.
func (r *Renderer) AllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", r.cfg.Headless),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.cfg.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	return opts
}

// Screenshot loads url, scrolls once, dismisses overlays with Escape and
// returns a full-page PNG or JPEG capture.
func (r *Renderer) Screenshot(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.AllocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	start := time.Now()
	if err := chromedp.Run(browserCtx, chromedp.Navigate(url)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	if err := chromedp.Run(browserCtx, chromedp.Evaluate(scrollScript, nil)); err != nil {
		r.logger.Warn("scroll failed", "url", url, "error", err)
	}

	if err := chromedp.Run(browserCtx, chromedp.SendKeys("body", kb.Escape, chromedp.ByQuery)); err != nil {
		r.logger.Warn("escape failed", "url", url, "error", err)
	}

	var buf []byte
	if err := chromedp.Run(browserCtx, chromedp.FullScreenshot(&buf, r.cfg.Quality)); err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}

	r.logger.Info("screenshot captured", "url", url, "bytes", len(buf), "took", time.Since(start))
	return buf, nil
}
