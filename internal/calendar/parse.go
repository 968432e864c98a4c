package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecocal/internal/classify"
	appLog "ecocal/internal/log"
	"ecocal/internal/model"
)

const (
	minDataCells = 6

	cellTime       = 0
	cellCountry    = 1
	cellName       = 2
	cellImportance = 3

	defaultHour   = 9
	defaultMinute = 0
)

var errMalformedRow = errors.New("calendar: data row has too few cells")

var dateLayouts = []string{
	"Monday, January 2, 2006",
	"Monday January 2 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// Stats counts what happened to each row during a parse. Kept counts rows
// that ended up in the map at some point; Superseded counts candidates that
// lost to an entry already holding their date.
type Stats struct {
	Headers    int
	Kept       int
	Superseded int
	Filtered   int
	Skipped    int
}

// Parser turns calendar rows into at most one event per display-zone date.
type Parser struct {
	Classifier *classify.Classifier
	// SourceLoc is the zone the calendar publishes wall-clock times in.
	SourceLoc *time.Location
	// DisplayLoc is the zone events are shown and keyed in.
	DisplayLoc *time.Location
	Now        func() time.Time
}

// NewParser returns a Parser with the default classifier and clock.
func NewParser(sourceLoc, displayLoc *time.Location) *Parser {
	return &Parser{
		Classifier: classify.Default(),
		SourceLoc:  sourceLoc,
		DisplayLoc: displayLoc,
		Now:        time.Now,
	}
}

// Parse walks rows in order, tracking the current date from header rows.
//
// A candidate is keyed by its date after conversion to DisplayLoc, which can
// differ from the header date. An existing entry is only replaced by a
// Critical candidate, so the last Critical row of a day wins.
func (p *Parser) Parse(rows []Row) (model.EventMap, Stats) {
	events := make(model.EventMap)
	var stats Stats
	var current time.Time

	for i, row := range rows {
		switch row.Kind {
		case RowDateHeader:
			stats.Headers++
			current = p.headerDate(row)
			continue
		case RowData:
		default:
			continue
		}

		if current.IsZero() {
			stats.Skipped++
			appLog.Debug("calendar row before any date header; skipping", "row", i)
			continue
		}

		ev, ok, err := p.parseData(row, current)
		if err != nil {
			stats.Skipped++
			appLog.Error("calendar row parse failed; skipping", err, "row", i, "cells", len(row.Cells))
			continue
		}
		if !ok {
			stats.Filtered++
			continue
		}

		key := ev.DateKey(p.DisplayLoc)
		if _, exists := events[key]; exists && ev.Importance != model.Critical {
			stats.Superseded++
			continue
		}
		stats.Kept++
		events[key] = ev
	}

	return events, stats
}

func (p *Parser) headerDate(row Row) time.Time {
	label := ""
	if len(row.Cells) > 0 {
		label = row.Cells[0].Text
	}
	d, err := ParseDateLabel(label)
	if err != nil {
		now := p.now().In(p.SourceLoc)
		appLog.Error("calendar date header unparseable; using today", err, "label", label)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return d
}

// parseData returns ok=false for rows that parse fine but are filtered out.
func (p *Parser) parseData(row Row, day time.Time) (model.EconomicEvent, bool, error) {
	if len(row.Cells) < minDataCells {
		return model.EconomicEvent{}, false, fmt.Errorf("%w: got %d, want >= %d", errMalformedRow, len(row.Cells), minDataCells)
	}

	name := row.Cells[cellName].Text
	importance := classify.ImportanceFromMarker(row.Cells[cellImportance].Classes...)
	if importance < classify.MinImportance {
		return model.EconomicEvent{}, false, nil
	}
	if !p.Classifier.IsRelevant(name) {
		return model.EconomicEvent{}, false, nil
	}

	hour, minute := ParseClock(row.Cells[cellTime].Text)
	local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.SourceLoc)

	ev := model.NewEvent(
		p.Classifier.Simplify(name),
		name,
		model.CountryFromText(row.Cells[cellCountry].Text),
		importance,
		p.Classifier.AffectedInstruments(name),
		local,
		p.DisplayLoc,
		false,
		model.OriginScraped,
	)
	return ev, true, nil
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// ParseDateLabel parses header labels such as "Friday, January 03, 2025".
// The result is a civil date (00:00 UTC).
func ParseDateLabel(label string) (time.Time, error) {
	label = strings.TrimSpace(label)
	candidates := []string{label}
	if _, rest, ok := strings.Cut(label, ","); ok {
		candidates = append(candidates, strings.TrimSpace(rest))
	}
	for _, c := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("calendar: unrecognized date label %q", label)
}

// ParseClock reads "8:30 AM", "08:30 PM" or "13:30". Blank, "Tentative",
// "All Day" and anything unparseable map to 09:00.
func ParseClock(text string) (hour, minute int) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" || s == "TENTATIVE" || s == "ALL DAY" {
		return defaultHour, defaultMinute
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute()
		}
	}
	// Tolerate single-digit hours and stray suffixes in 24h form ("8:30", "13:30 ET").
	if h, m, ok := strings.Cut(strings.Fields(s)[0], ":"); ok {
		hh, errH := strconv.Atoi(h)
		mm, errM := strconv.Atoi(m)
		if errH == nil && errM == nil && hh >= 0 && hh < 24 && mm >= 0 && mm < 60 {
			return hh, mm
		}
	}
	return defaultHour, defaultMinute
}
