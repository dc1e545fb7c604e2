package zhszjj

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

// BrowserFetcher loads the feed in headless Chrome. Use it when the upstream
// only serves the listing page to real browsers.
type BrowserFetcher struct {
	baseURL   string
	timeout   time.Duration
	chromeBin string
	logger    *utils.Logger
}

// NewBrowserFetcher creates a BrowserFetcher. An empty chromeBin is looked up
// among the usual install locations.
func NewBrowserFetcher(baseURL string, timeout time.Duration, chromeBin string, logger *utils.Logger) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = lookupChrome(chromeCandidates)
	}
	return &BrowserFetcher{
		baseURL:   baseURL,
		timeout:   timeout,
		chromeBin: chromeBin,
		logger:    logger,
	}
}

// Fetch navigates to the feed and returns the rendered document. A JSON
// response shown raw by the browser is decoded back into a JSON payload.
func (f *BrowserFetcher) Fetch(ctx context.Context, offset, size int) (models.RawPayload, error) {
	target := FeedURL(f.baseURL, offset, size)

	f.logger.Info("[fetcher] browser GET %s (binary: %q)", target, f.chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if f.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(f.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, f.timeout)
	defer cancelTimeout()

	var contentType, text, doc string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.contentType`, &contentType),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	)
	if err != nil {
		return models.RawPayload{}, &models.NetworkError{URL: target, Err: err}
	}

	payload := browserPayload(contentType, text, doc)
	f.logger.Info("[fetcher] browser rendered %d bytes (%s, %s)", len(doc), contentType, payload.Kind)
	return payload, nil
}

// chromeCandidates are tried in order when no binary is configured. Bare
// names are resolved through PATH.
var chromeCandidates = []string{
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	"/opt/google/chrome/google-chrome",
}

// lookupChrome returns the first candidate that exists, or "" to let chromedp
// fall back to its own search.
func lookupChrome(candidates []string) string {
	for _, c := range candidates {
		if filepath.IsAbs(c) {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c
			}
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}

// browserPayload picks what to hand the parser from a rendered page. Chrome
// wraps a raw JSON response in a <pre>, so the visible text is decoded
// instead of the markup when the document is JSON.
func browserPayload(contentType, text, doc string) models.RawPayload {
	if strings.Contains(contentType, "json") {
		if payload := DecodePayload([]byte(text)); payload.Kind == models.PayloadJSON {
			return payload
		}
	}
	return models.HTMLPayload(doc)
}
