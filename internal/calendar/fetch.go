package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	appLog "ecocal/internal/log"
)

const (
	// DefaultURL is the public economic calendar page.
	DefaultURL = "https://tradingeconomics.com/calendar"
	// DefaultUserAgent identifies the client to the calendar site.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ecocal/1.0; +https://github.com/ecocal)"
	DefaultTimeout   = 10 * time.Second

	queryDateLayout = "2006-01-02"
)

// DocumentFetcher retrieves the calendar page for a date window.
type DocumentFetcher interface {
	Fetch(ctx context.Context, from, to time.Time) (*goquery.Document, error)
}

// HTTPFetcher downloads the calendar with a plain GET. It never retries.
type HTTPFetcher struct {
	client *resty.Client
	url    string
}

// NewHTTPFetcher creates a fetcher for pageURL. Empty arguments fall back to
// the package defaults.
func NewHTTPFetcher(pageURL, userAgent string, timeout time.Duration) *HTTPFetcher {
	if pageURL == "" {
		pageURL = DefaultURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")
	return &HTTPFetcher{client: client, url: pageURL}
}

// Fetch GETs the page with d1/d2 bounding the window.
func (f *HTTPFetcher) Fetch(ctx context.Context, from, to time.Time) (*goquery.Document, error) {
	appLog.Info("calendar fetch start", "url", f.url, "d1", from.Format(queryDateLayout), "d2", to.Format(queryDateLayout))

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(windowParams(from, to)).
		Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("calendar fetch: unexpected status %s", resp.Status())
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, errors.New("calendar fetch: empty body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("calendar fetch: parse html: %w", err)
	}

	appLog.Info("calendar fetch success", "url", f.url, "status", resp.StatusCode(), "bytes", len(body))
	return doc, nil
}

func windowParams(from, to time.Time) map[string]string {
	return map[string]string{
		"d1": from.Format(queryDateLayout),
		"d2": to.Format(queryDateLayout),
	}
}

// windowURL returns pageURL with the d1/d2 window applied.
func windowURL(pageURL string, from, to time.Time) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range windowParams(from, to) {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
