package calendar

import (
	"context"
	"time"

	appLog "ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
)

// Failure classifies why a scrape produced nothing.
type Failure int

const (
	FailureNone Failure = iota
	// FailureTransport covers network errors, timeouts and non-2xx replies.
	FailureTransport
	// FailureStructure means the page came back without the calendar table.
	FailureStructure
)

func (f Failure) String() string {
	switch f {
	case FailureTransport:
		return "transport"
	case FailureStructure:
		return "structure"
	default:
		return "none"
	}
}

// Result is the outcome of one scrape. Events is never nil; on failure it
// is empty and Failure/Err say why.
type Result struct {
	Events  model.EventMap
	Failure Failure
	Err     error
	Stats   Stats
}

// Scraper ties a fetcher to a parser.
type Scraper struct {
	Fetcher DocumentFetcher
	Parser  *Parser
	Now     func() time.Time
}

// Scrape fetches today .. today+daysAhead (UTC dates) and parses the rows.
// It never returns an error: failures are logged and reported in Result.
func (s *Scraper) Scrape(ctx context.Context, daysAhead int) Result {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	today := now().UTC()
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, daysAhead)

	doc, err := s.Fetcher.Fetch(ctx, from, to)
	if err != nil {
		appLog.Error("calendar scrape: fetch failed", err, "days_ahead", daysAhead)
		metrics.FetchTotal.WithLabelValues(FailureTransport.String()).Inc()
		return Result{Events: model.EventMap{}, Failure: FailureTransport, Err: err}
	}

	rows, err := ExtractRows(doc)
	if err != nil {
		appLog.Error("calendar scrape: structure missing", err)
		metrics.FetchTotal.WithLabelValues(FailureStructure.String()).Inc()
		return Result{Events: model.EventMap{}, Failure: FailureStructure, Err: err}
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()

	events, stats := s.Parser.Parse(rows)
	metrics.RowsTotal.WithLabelValues("kept").Add(float64(stats.Kept))
	metrics.RowsTotal.WithLabelValues("superseded").Add(float64(stats.Superseded))
	metrics.RowsTotal.WithLabelValues("filtered").Add(float64(stats.Filtered))
	metrics.RowsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))

	appLog.Info("calendar scrape completed",
		"rows", len(rows),
		"kept", stats.Kept,
		"superseded", stats.Superseded,
		"filtered", stats.Filtered,
		"skipped", stats.Skipped,
		"days", len(events),
	)
	return Result{Events: events, Stats: stats}
}
