package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	appLog "ecocal/internal/log"
)

// DefaultBrowserTimeout bounds a whole headless render.
const DefaultBrowserTimeout = 30 * time.Second

// BrowserFetcher renders the calendar in headless Chromium via chromedp. It
// is used when the plain HTML response does not carry the table, e.g. when
// the site serves it through client-side rendering or a bot challenge.
type BrowserFetcher struct {
	// URL of the calendar page. Empty means DefaultURL.
	URL       string
	UserAgent string
	// Timeout bounds the entire render. Zero means DefaultBrowserTimeout.
	Timeout time.Duration
}

// Fetch navigates to the page, waits for table#calendar, and parses the
// rendered DOM.
func (f *BrowserFetcher) Fetch(parentCtx context.Context, from, to time.Time) (*goquery.Document, error) {
	pageURL := f.URL
	if pageURL == "" {
		pageURL = DefaultURL
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	userAgent := f.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	target, err := windowURL(pageURL, from, to)
	if err != nil {
		return nil, fmt.Errorf("calendar browser: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	appLog.Info("calendar browser fetch start", "url", target)

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(target),
		chromedp.WaitReady(tableSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("calendar browser: chromedp run failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("calendar browser: parse html: %w", err)
	}
	appLog.Info("calendar browser fetch success", "url", target, "bytes", len(html))
	return doc, nil
}
