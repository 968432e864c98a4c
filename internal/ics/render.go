// Package ics renders an agenda as an iCalendar feed so calendar clients
// can subscribe to the same events the channel is told about.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"ecocal/internal/agenda"
	appLog "ecocal/internal/log"
)

// DefaultProdID identifies the feed producer.
const DefaultProdID = "-//ecocal//Economic Calendar//EN"

// uidNamespace scopes event UIDs so the same day and name always map to the
// same UID across renders.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ecocal/agenda"))

// EventDuration is the block reserved for timed releases.
const EventDuration = time.Hour

// Render serializes days as a VCALENDAR with one VEVENT per day. stamp is
// written as DTSTAMP so identical input renders identically.
func Render(days []agenda.Day, prodID string, stamp time.Time) ([]byte, error) {
	if prodID == "" {
		prodID = DefaultProdID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetXWRCalName("Economic calendar")

	for _, d := range days {
		if d.Event.Name == "" {
			return nil, fmt.Errorf("ics: day %s has no event name", d.Key)
		}
		ve := cal.AddEvent(UID(d.Key, d.Event.Name))
		ve.SetDtStampTime(stamp.UTC())

		if d.Event.Time.Variable {
			ve.SetAllDayStartAt(d.Date)
			ve.SetAllDayEndAt(d.Date.AddDate(0, 0, 1))
		} else {
			ve.SetStartAt(d.Event.At)
			ve.SetEndAt(d.Event.At.Add(EventDuration))
		}

		ve.SetSummary(fmt.Sprintf("[%s] %s", d.Event.Country, d.Event.Name))
		ve.SetDescription(description(d))
		ve.AddProperty(ical.ComponentPropertyCategories, strings.ToUpper(d.Event.Importance.String()))
	}

	out := cal.Serialize()
	appLog.Debug("ics render completed", "event_count", len(days), "bytes", len(out))
	return []byte(out), nil
}

// UID returns the stable identifier of the event named name on date key.
func UID(key, name string) string {
	return uuid.NewSHA1(uidNamespace, []byte(key+"|"+name)).String() + "@ecocal"
}

func description(d agenda.Day) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Importance: %s (%d/5)\n", d.Event.Importance, d.Event.Importance.Stars())
	if len(d.Event.Instruments) > 0 {
		fmt.Fprintf(&b, "Instruments: %s\n", strings.Join(d.Event.Instruments, ", "))
	}
	if d.Event.RawDescription != "" {
		b.WriteString(d.Event.RawDescription)
		b.WriteString("\n")
	}
	if len(d.Holidays) > 0 {
		fmt.Fprintf(&b, "Market holiday: %s\n", strings.Join(d.Holidays, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
