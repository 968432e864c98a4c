package agenda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocal/internal/calendar"
	"ecocal/internal/model"
)

func event(name string, imp model.Importance, origin model.Origin, at time.Time) model.EconomicEvent {
	return model.NewEvent(name, name, model.CountryUS, imp, []string{"ES"}, at, time.UTC, false, origin)
}

func TestMergeScrapedWins(t *testing.T) {
	day := time.Date(2025, 1, 3, 13, 30, 0, 0, time.UTC)
	recurring := model.EventMap{
		"2025-01-03": event("NFP - Non-Farm Payroll", model.Critical, model.OriginRecurring, day),
		"2025-01-08": event("EIA Crude Oil Inventories", model.High, model.OriginRecurring, day.AddDate(0, 0, 5)),
	}
	scraped := model.EventMap{
		"2025-01-03": event("Unemployment Rate", model.High, model.OriginScraped, day),
	}

	merged := Merge(recurring, scraped)

	require.Len(t, merged, 2)
	assert.Equal(t, "Unemployment Rate", merged["2025-01-03"].Name, "scraped beats a critical recurring entry")
	assert.Equal(t, model.OriginRecurring, merged["2025-01-08"].Origin, "recurring fills the gap")
}

func TestMergeRecurringNeverDisplacesScraped(t *testing.T) {
	day := time.Date(2025, 1, 3, 13, 30, 0, 0, time.UTC)
	scraped := model.EventMap{"2025-01-03": event("CPI - Inflation", model.Critical, model.OriginScraped, day)}
	recurring := model.EventMap{"2025-01-03": event("NFP - Non-Farm Payroll", model.Critical, model.OriginRecurring, day)}

	merged := Merge(recurring, scraped)
	assert.Equal(t, "CPI - Inflation", merged["2025-01-03"].Name)
}

func TestMergeLeavesInputsAlone(t *testing.T) {
	recurring := model.EventMap{"2025-01-08": {Name: "a"}}
	scraped := model.EventMap{"2025-01-09": {Name: "b"}}

	merged := Merge(recurring, scraped)
	merged["2025-01-10"] = model.EconomicEvent{Name: "c"}

	assert.Len(t, recurring, 1)
	assert.Len(t, scraped, 1)
	assert.Len(t, Merge(nil, nil), 0)
}

type fakeScraper struct {
	res  calendar.Result
	days int
}

func (f *fakeScraper) Scrape(_ context.Context, daysAhead int) calendar.Result {
	f.days = daysAhead
	return f.res
}

type fakeGenerator model.EventMap

func (g fakeGenerator) Generate() model.EventMap {
	out := make(model.EventMap, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

func newBuilder(t *testing.T, s Scraper, g Generator, includeRecurring bool) *Builder {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return &Builder{
		Scraper:          s,
		Generator:        g,
		IncludeRecurring: includeRecurring,
		DisplayLoc:       paris,
		Now:              func() time.Time { return time.Date(2025, 1, 8, 6, 0, 0, 0, time.UTC) },
	}
}

func TestBuilderWeekly(t *testing.T) {
	at := time.Date(2025, 1, 8, 15, 30, 0, 0, time.UTC)
	s := &fakeScraper{res: calendar.Result{Events: model.EventMap{
		"2025-01-10": event("NFP - Non-Farm Payroll", model.Critical, model.OriginScraped, at.AddDate(0, 0, 2)),
	}}}
	g := fakeGenerator{
		"2025-01-08": event("EIA Crude Oil Inventories", model.High, model.OriginRecurring, at),
		"2025-01-10": event("NFP - Non-Farm Payroll", model.Critical, model.OriginRecurring, at.AddDate(0, 0, 2)),
	}

	a := newBuilder(t, s, g, true).Weekly(context.Background(), 7)

	assert.Equal(t, 7, s.days)
	assert.Equal(t, []string{"2025-01-08", "2025-01-10"}, a.Events.SortedKeys())
	assert.Equal(t, model.OriginScraped, a.Events["2025-01-10"].Origin)
	assert.Equal(t, calendar.FailureNone, a.Failure)
	assert.Equal(t, time.Date(2025, 1, 8, 6, 0, 0, 0, time.UTC), a.GeneratedAt)
}

func TestBuilderWithoutRecurring(t *testing.T) {
	s := &fakeScraper{res: calendar.Result{Events: model.EventMap{}}}
	g := fakeGenerator{"2025-01-08": {Name: "EIA Crude Oil Inventories"}}

	a := newBuilder(t, s, g, false).Weekly(context.Background(), 7)
	assert.Empty(t, a.Events)
}

func TestBuilderFailureStillMergesRecurring(t *testing.T) {
	s := &fakeScraper{res: calendar.Result{
		Events:  model.EventMap{},
		Failure: calendar.FailureTransport,
		Err:     errors.New("timeout"),
	}}
	g := fakeGenerator{"2025-01-08": {Name: "EIA Crude Oil Inventories"}}

	a := newBuilder(t, s, g, true).Weekly(context.Background(), 7)
	assert.Equal(t, calendar.FailureTransport, a.Failure)
	assert.Len(t, a.Events, 1)
}

func TestBuilderDailyKeepsOnlyToday(t *testing.T) {
	s := &fakeScraper{res: calendar.Result{Events: model.EventMap{
		"2025-01-08": {Name: "CPI - Inflation"},
		"2025-01-09": {Name: "Jobless Claims"},
	}}}
	g := fakeGenerator{"2025-01-10": {Name: "NFP - Non-Farm Payroll"}}

	a := newBuilder(t, s, g, true).Daily(context.Background())

	assert.Equal(t, 1, s.days)
	assert.Equal(t, []string{"2025-01-08"}, a.Events.SortedKeys())
}

func TestAnnotate(t *testing.T) {
	events := model.EventMap{
		"2025-12-26": {Name: "Jobless Claims"},
		"2025-12-22": {Name: "GDP - Growth"},
		"2025-12-25": {Name: "Retail Sales"},
		"not-a-date": {Name: "junk"},
	}

	days := Annotate(events)

	require.Len(t, days, 3)
	assert.Equal(t, "2025-12-22", days[0].Key)
	assert.Empty(t, days[0].Holidays)
	assert.Equal(t, time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC), days[0].Date)

	assert.Equal(t, "Retail Sales", days[1].Event.Name)
	assert.Equal(t, []string{"Christmas Day (US)", "Christmas Day (UK)"}, days[1].Holidays)

	assert.Equal(t, []string{"Boxing Day (UK)"}, days[2].Holidays)
}
