// Package browser renders web pages to images with a headless Chrome driven
// by chromedp. Renderer satisfies handler.Screenshotter.
//
// Each capture launches its own browser process under the configured
// timeout:
//
//	r := browser.NewRenderer(cfg.Screenshot, logger)
//	png, err := r.Screenshot(ctx, "https://example.com")
package browser
