// Package agenda combines scraped and recurring events into the per-day
// agenda handed to delivery, and annotates each day with market holidays.
package agenda

import (
	"context"
	"time"

	"ecocal/internal/calendar"
	"ecocal/internal/holiday"
	appLog "ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
)

// Merge layers scraped over recurring: on a shared date the scraped event
// wins and recurring events only fill the gaps. Neither input is modified.
func Merge(recurring, scraped model.EventMap) model.EventMap {
	out := make(model.EventMap, len(recurring)+len(scraped))
	for k, ev := range recurring {
		out[k] = ev
	}
	for k, ev := range scraped {
		out[k] = ev
	}
	return out
}

// Scraper is the part of calendar.Scraper the builder needs.
type Scraper interface {
	Scrape(ctx context.Context, daysAhead int) calendar.Result
}

// Generator is the part of recurring.Generator the builder needs.
type Generator interface {
	Generate() model.EventMap
}

// Agenda is one built event map plus how the scrape went.
type Agenda struct {
	Events      model.EventMap
	Failure     calendar.Failure
	GeneratedAt time.Time
}

// Builder runs the fetch → parse → merge pipeline. Every call builds fresh
// maps, so weekly and daily runs may overlap.
type Builder struct {
	Scraper          Scraper
	Generator        Generator
	IncludeRecurring bool
	// DailyDays is the fetch window of Daily; zero means one day.
	DailyDays  int
	DisplayLoc *time.Location
	Now        func() time.Time
}

// Weekly builds the agenda for the next days.
func (b *Builder) Weekly(ctx context.Context, days int) Agenda {
	return b.build(ctx, days, false)
}

// Daily builds the agenda restricted to today's display-zone date.
func (b *Builder) Daily(ctx context.Context) Agenda {
	days := b.DailyDays
	if days <= 0 {
		days = 1
	}
	return b.build(ctx, days, true)
}

func (b *Builder) build(ctx context.Context, days int, todayOnly bool) Agenda {
	now := b.now()
	res := b.Scraper.Scrape(ctx, days)

	var recurring model.EventMap
	if b.IncludeRecurring && b.Generator != nil {
		recurring = b.Generator.Generate()
	}
	metrics.Events.WithLabelValues(model.OriginScraped.String()).Set(float64(len(res.Events)))
	metrics.Events.WithLabelValues(model.OriginRecurring.String()).Set(float64(len(recurring)))

	events := Merge(recurring, res.Events)
	if todayOnly {
		today := now.In(b.DisplayLoc).Format(model.DateLayout)
		for k := range events {
			if k != today {
				delete(events, k)
			}
		}
	}

	appLog.Debug("agenda built",
		"days", days,
		"today_only", todayOnly,
		"scraped", len(res.Events),
		"recurring", len(recurring),
		"merged", len(events),
		"failure", res.Failure.String(),
	)
	return Agenda{Events: events, Failure: res.Failure, GeneratedAt: now}
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Day is one agenda entry with the holidays falling on its date.
type Day struct {
	// Date is the civil date at 00:00 UTC.
	Date     time.Time
	Key      string
	Event    model.EconomicEvent
	Holidays []string
}

// Annotate returns the events in date order with holiday labels attached.
// Keys are display-zone dates already; ones that are not ISO dates are
// dropped.
func Annotate(events model.EventMap) []Day {
	days := make([]Day, 0, len(events))
	for _, key := range events.SortedKeys() {
		d, err := time.ParseInLocation(model.DateLayout, key, time.UTC)
		if err != nil {
			appLog.Warn("agenda: skipping malformed date key", "key", key)
			continue
		}
		days = append(days, Day{
			Date:     d,
			Key:      key,
			Event:    events[key],
			Holidays: holiday.IsMarketHoliday(d),
		})
	}
	return days
}
