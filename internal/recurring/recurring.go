// Package recurring produces the hardcoded releases that do not depend on
// the scraped calendar: the monthly payroll report, the weekly crude
// inventories report and the quarterly earnings-season marker.
package recurring

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"ecocal/internal/holiday"
	appLog "ecocal/internal/log"
	"ecocal/internal/model"
)

// Release is a fixed-time report that repeats on an RRULE within a month.
type Release struct {
	Name        string
	Description string
	Importance  model.Importance
	Instruments []string
	// Rule is an RRULE without DTSTART/UNTIL; both are set per month.
	Rule string
	// Hour and Minute are wall-clock in the source timezone.
	Hour   int
	Minute int
}

var (
	NonFarmPayroll = Release{
		Name:        "NFP - Non-Farm Payroll",
		Description: "US non-farm employment change, critical release",
		Importance:  model.Critical,
		Instruments: []string{"ES", "NQ", "GC", "6E", "CL", "BTC", "ETH"},
		Rule:        "FREQ=MONTHLY;BYDAY=+1FR",
		Hour:        13,
		Minute:      30,
	}

	CrudeInventories = Release{
		Name:        "EIA Crude Oil Inventories",
		Description: "US crude oil stocks, weekly EIA report",
		Importance:  model.High,
		Instruments: []string{"CL", "ES", "GC"},
		Rule:        "FREQ=WEEKLY;BYDAY=WE",
		Hour:        10,
		Minute:      30,
	}
)

// Window is an inclusive month/day range within one year.
type Window struct {
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

// EarningsWindows are the four quarterly reporting seasons.
var EarningsWindows = []Window{
	{time.January, 15, time.February, 5},
	{time.April, 15, time.May, 5},
	{time.July, 15, time.August, 5},
	{time.October, 15, time.November, 5},
}

var earningsInstruments = []string{"NQ", "ES", "BTC", "ETH"}

// Generator builds the recurring events for the month containing Now.
type Generator struct {
	DisplayLoc *time.Location
	SourceLoc  *time.Location
	// TradingDayAware drops inventory reports that fall on market holidays.
	TradingDayAware bool
	Now             func() time.Time
}

// Generate returns the recurring events keyed by display-zone date.
func (g *Generator) Generate() model.EventMap {
	now := g.now().In(g.DisplayLoc)
	events := make(model.EventMap)

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, g.SourceLoc)

	nfp, err := g.occurrences(NonFarmPayroll, monthStart)
	if err != nil {
		appLog.Error("recurring: payroll rule failed", err)
	}
	for _, at := range nfp {
		ev := g.event(NonFarmPayroll, at)
		events[ev.DateKey(g.DisplayLoc)] = ev
	}

	today := now.Format(model.DateLayout)
	wednesdays, err := g.occurrences(CrudeInventories, monthStart)
	if err != nil {
		appLog.Error("recurring: inventories rule failed", err)
	}
	for _, at := range wednesdays {
		ev := g.event(CrudeInventories, at)
		key := ev.DateKey(g.DisplayLoc)
		if key < today {
			continue
		}
		if g.TradingDayAware && !holiday.IsTradingDay(at.In(g.SourceLoc)) {
			appLog.Debug("recurring: inventories report on market holiday; skipping", "date", key)
			continue
		}
		events[key] = ev
	}

	if w, start, ok := ActiveWindow(now); ok {
		key := start.Format(model.DateLayout)
		if _, taken := events[key]; !taken {
			end := time.Date(now.Year(), w.EndMonth, w.EndDay, 0, 0, 0, 0, g.DisplayLoc)
			events[key] = model.NewEvent(
				"Earnings Season",
				fmt.Sprintf("Quarterly earnings season until %s", end.Format("Jan 2")),
				model.CountryUS,
				model.High,
				earningsInstruments,
				start,
				g.DisplayLoc,
				true,
				model.OriginRecurring,
			)
		}
	}

	return events
}

// ActiveWindow returns the earnings window containing now (inclusive of
// both end dates) and its start at midnight in now's location.
func ActiveWindow(now time.Time) (Window, time.Time, bool) {
	loc := now.Location()
	for _, w := range EarningsWindows {
		start := time.Date(now.Year(), w.StartMonth, w.StartDay, 0, 0, 0, 0, loc)
		end := time.Date(now.Year(), w.EndMonth, w.EndDay+1, 0, 0, 0, 0, loc)
		if !now.Before(start) && now.Before(end) {
			return w, start, true
		}
	}
	return Window{}, time.Time{}, false
}

// occurrences expands r over the month starting at monthStart and pins each
// date to the release's source-zone time.
func (g *Generator) occurrences(r Release, monthStart time.Time) ([]time.Time, error) {
	opt, err := rrule.StrToROption(r.Rule)
	if err != nil {
		return nil, fmt.Errorf("parse rule %q: %w", r.Rule, err)
	}
	opt.Dtstart = monthStart
	opt.Until = monthStart.AddDate(0, 1, 0).Add(-time.Second)

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rule %q: %w", r.Rule, err)
	}

	dates := rule.All()
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = d.In(g.SourceLoc)
		out = append(out, time.Date(d.Year(), d.Month(), d.Day(), r.Hour, r.Minute, 0, 0, g.SourceLoc))
	}
	return out, nil
}

func (g *Generator) event(r Release, at time.Time) model.EconomicEvent {
	return model.NewEvent(r.Name, r.Description, model.CountryUS, r.Importance, r.Instruments, at, g.DisplayLoc, false, model.OriginRecurring)
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}
