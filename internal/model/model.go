package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
	// Zones must resolve on hosts without a system zoneinfo database.
	_ "time/tzdata"
)

// DateLayout is the ISO calendar-date layout used for all per-day keys.
const DateLayout = "2006-01-02"

// Importance is the unified ordinal scale for scraped and recurring events.
type Importance int

const (
	Low Importance = iota
	Medium
	High
	Critical
)

func (i Importance) String() string {
	switch i {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("importance(%d)", int(i))
	}
}

// Stars maps the scale onto the 2..5 star rating shown to readers.
func (i Importance) Stars() int {
	return int(i) + 2
}

// Country tags the economy an event belongs to.
type Country int

const (
	CountryOther Country = iota
	CountryUS
	CountryEU
	CountryUK
	CountryJP
)

func (c Country) String() string {
	switch c {
	case CountryUS:
		return "US"
	case CountryEU:
		return "EU"
	case CountryUK:
		return "UK"
	case CountryJP:
		return "JP"
	default:
		return "other"
	}
}

// CountryFromText maps the scraped country cell onto a Country.
func CountryFromText(text string) Country {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "us" || strings.Contains(t, "united states") || strings.Contains(t, "usa"):
		return CountryUS
	case t == "eu" || strings.Contains(t, "euro"):
		return CountryEU
	case t == "uk" || t == "gb" || strings.Contains(t, "united kingdom") || strings.Contains(t, "britain"):
		return CountryUK
	case t == "jp" || strings.Contains(t, "japan"):
		return CountryJP
	default:
		return CountryOther
	}
}

// TimeOfDay is a display-zone wall clock, or the Variable sentinel when the
// release has no fixed time.
type TimeOfDay struct {
	Hour     int
	Minute   int
	Variable bool
}

// VariableTime marks events without a published release time.
var VariableTime = TimeOfDay{Variable: true}

// ClockOf returns the wall-clock time of t.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) String() string {
	if t.Variable {
		return "Variable"
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Origin records which producer built an event.
type Origin int

const (
	OriginScraped Origin = iota
	OriginRecurring
)

func (o Origin) String() string {
	if o == OriginRecurring {
		return "recurring"
	}
	return "scraped"
}

// EconomicEvent is a single normalized calendar release. Values are passed
// by copy and never mutated after construction.
type EconomicEvent struct {
	// Name is the simplified display name.
	Name string
	// RawDescription keeps the scraped (or hardcoded) description verbatim.
	RawDescription string

	// Time is the release time in the display timezone.
	Time    TimeOfDay
	Country Country

	Importance Importance
	// Instruments is ordered; presentation shows only the first few.
	Instruments []string

	// At is the release instant in UTC.
	At time.Time

	Origin Origin
}

// NewEvent builds an event, copying the instrument list and normalizing At
// to UTC. displayLoc decides the TimeOfDay unless variable is set.
func NewEvent(name, raw string, country Country, imp Importance, instruments []string, at time.Time, displayLoc *time.Location, variable bool, origin Origin) EconomicEvent {
	tod := VariableTime
	if !variable {
		tod = ClockOf(at.In(displayLoc))
	}
	return EconomicEvent{
		Name:           name,
		RawDescription: raw,
		Time:           tod,
		Country:        country,
		Importance:     imp,
		Instruments:    append([]string(nil), instruments...),
		At:             at.UTC(),
		Origin:         origin,
	}
}

// DateKey returns the ISO date of the event in loc.
func (e EconomicEvent) DateKey(loc *time.Location) string {
	return e.At.In(loc).Format(DateLayout)
}

// EventMap holds at most one event per ISO date.
type EventMap map[string]EconomicEvent

// SortedKeys returns the date keys in chronological order.
func (m EventMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Jurisdiction is the market whose holiday calendar a record belongs to.
type Jurisdiction string

const (
	JurisdictionUS Jurisdiction = "US"
	JurisdictionUK Jurisdiction = "UK"
)

// HolidayRecord is one market closure date.
type HolidayRecord struct {
	Date         time.Time
	Jurisdiction Jurisdiction
	Label        string
}

func (h HolidayRecord) String() string {
	return h.Label + " (" + string(h.Jurisdiction) + ")"
}
