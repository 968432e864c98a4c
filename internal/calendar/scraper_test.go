package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calendarTestNow = time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC)

func TestHTTPFetcherSendsWindowAndUserAgent(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(calendarPage))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/calendar", "ecocal-test/1.0", time.Second)
	doc, err := f.Fetch(context.Background(),
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "d1=2025-01-02&d2=2025-01-09", gotQuery)
	assert.Equal(t, "ecocal-test/1.0", gotUA)
	assert.Equal(t, 1, doc.Find("table#calendar").Length())
}

func TestHTTPFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, "", time.Second).Fetch(context.Background(), calendarTestNow, calendarTestNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWindowURL(t *testing.T) {
	got, err := windowURL("https://example.com/calendar?c=us", calendarTestNow, calendarTestNow.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/calendar?c=us&d1=2025-01-02&d2=2025-01-09", got)
}

type stubFetcher struct {
	doc      *goquery.Document
	err      error
	from, to time.Time
}

func (s *stubFetcher) Fetch(_ context.Context, from, to time.Time) (*goquery.Document, error) {
	s.from, s.to = from, to
	return s.doc, s.err
}

func newTestScraper(t *testing.T, f DocumentFetcher) *Scraper {
	return &Scraper{
		Fetcher: f,
		Parser:  testParser(t, calendarTestNow),
		Now:     func() time.Time { return calendarTestNow },
	}
}

func TestScrapeSuccess(t *testing.T) {
	stub := &stubFetcher{doc: mustDoc(t, calendarPage)}
	res := newTestScraper(t, stub).Scrape(context.Background(), 7)

	assert.Equal(t, FailureNone, res.Failure)
	assert.NoError(t, res.Err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, "2025-01-02", stub.from.Format("2006-01-02"))
	assert.Equal(t, "2025-01-09", stub.to.Format("2006-01-02"))
}

func TestScrapeTransportFailureYieldsEmptyMap(t *testing.T) {
	res := newTestScraper(t, &stubFetcher{err: errors.New("dial tcp: timeout")}).Scrape(context.Background(), 7)

	assert.Equal(t, FailureTransport, res.Failure)
	assert.Error(t, res.Err)
	require.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
}

func TestScrapeStructureFailureYieldsEmptyMap(t *testing.T) {
	stub := &stubFetcher{doc: mustDoc(t, `<html><body>captcha</body></html>`)}
	res := newTestScraper(t, stub).Scrape(context.Background(), 1)

	assert.Equal(t, FailureStructure, res.Failure)
	assert.ErrorIs(t, res.Err, ErrNoCalendarTable)
	require.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
	assert.Equal(t, "structure", res.Failure.String())
}
