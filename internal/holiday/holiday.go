// Package holiday computes US (NYSE) and UK (LSE) market closure dates from
// fixed-date and weekday rules plus the Gregorian Easter computus.
//
// All functions are pure. Dates are civil dates: a time.Time at 00:00 UTC.
// Inputs may carry any location; only their wall-clock date is used.
package holiday

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"ecocal/internal/model"
)

// ErrNoSuchWeekday is returned when a month has fewer than n occurrences of
// the requested weekday.
var ErrNoSuchWeekday = errors.New("holiday: weekday occurrence does not exist in month")

// Date returns the civil date for year/month/day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Civil truncates t to its wall-clock date.
func Civil(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// NthWeekday returns the n-th (1-based) occurrence of weekday in the month.
func NthWeekday(year int, month time.Month, weekday time.Weekday, n int) (time.Time, error) {
	if n < 1 {
		return time.Time{}, fmt.Errorf("%w: n=%d", ErrNoSuchWeekday, n)
	}
	first := Date(year, month, 1)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	d := first.AddDate(0, 0, offset+(n-1)*7)
	if d.Month() != month {
		return time.Time{}, fmt.Errorf("%w: %d-%02d %s #%d", ErrNoSuchWeekday, year, int(month), weekday, n)
	}
	return d, nil
}

// LastWeekday returns the last occurrence of weekday in the month, stepping
// back from the month's final day.
func LastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := Date(year, month+1, 1).AddDate(0, 0, -1)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Easter returns Easter Sunday using the anonymous Gregorian algorithm
// (Meeus/Jones/Butcher).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return Date(year, time.Month(month), day)
}

// mustNth is only used with n <= 4, which always exists.
func mustNth(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d, err := NthWeekday(year, month, weekday, n)
	if err != nil {
		panic(err)
	}
	return d
}

// US returns the NYSE holidays for year, sorted by date.
func US(year int) []model.HolidayRecord {
	easter := Easter(year)
	recs := []model.HolidayRecord{
		us(Date(year, time.January, 1), "New Year's Day"),
		us(Date(year, time.July, 4), "Independence Day"),
		us(Date(year, time.December, 25), "Christmas Day"),
		us(mustNth(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day"),
		us(mustNth(year, time.February, time.Monday, 3), "Presidents' Day"),
		us(LastWeekday(year, time.May, time.Monday), "Memorial Day"),
		us(mustNth(year, time.September, time.Monday, 1), "Labor Day"),
		us(mustNth(year, time.November, time.Thursday, 4), "Thanksgiving Day"),
		us(easter.AddDate(0, 0, -2), "Good Friday"),
	}
	sortRecords(recs)
	return recs
}

// UK returns the LSE holidays for year, sorted by date.
func UK(year int) []model.HolidayRecord {
	easter := Easter(year)
	recs := []model.HolidayRecord{
		uk(Date(year, time.January, 1), "New Year's Day"),
		uk(Date(year, time.December, 25), "Christmas Day"),
		uk(Date(year, time.December, 26), "Boxing Day"),
		uk(easter.AddDate(0, 0, -2), "Good Friday"),
		uk(easter.AddDate(0, 0, 1), "Easter Monday"),
		uk(mustNth(year, time.May, time.Monday, 1), "Early May Bank Holiday"),
		uk(LastWeekday(year, time.May, time.Monday), "Spring Bank Holiday"),
		uk(LastWeekday(year, time.August, time.Monday), "Summer Bank Holiday"),
	}
	sortRecords(recs)
	return recs
}

func us(d time.Time, label string) model.HolidayRecord {
	return model.HolidayRecord{Date: d, Jurisdiction: model.JurisdictionUS, Label: label}
}

func uk(d time.Time, label string) model.HolidayRecord {
	return model.HolidayRecord{Date: d, Jurisdiction: model.JurisdictionUK, Label: label}
}

func sortRecords(recs []model.HolidayRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
}

// Holidays returns the US then UK records falling on date.
func Holidays(date time.Time) []model.HolidayRecord {
	d := Civil(date)
	return match(d, append(US(d.Year()), UK(d.Year())...))
}

// IsMarketHoliday returns the labels of every US/UK holiday on date, US
// first. The result is empty when markets are open.
func IsMarketHoliday(date time.Time) []string {
	return labels(Holidays(date))
}

func match(d time.Time, table []model.HolidayRecord) []model.HolidayRecord {
	var out []model.HolidayRecord
	for _, r := range table {
		if r.Date.Equal(d) {
			out = append(out, r)
		}
	}
	return out
}

func labels(recs []model.HolidayRecord) []string {
	if len(recs) == 0 {
		return nil
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.String())
	}
	return out
}

// Upcoming is one date in the look-ahead window with its holiday labels.
type Upcoming struct {
	Date   time.Time
	Labels []string
}

// UpcomingHolidays scans today .. today+daysAhead-1. Next year's tables are
// only consulted from November on.
func UpcomingHolidays(today time.Time, daysAhead int) []Upcoming {
	start := Civil(today)
	table := append(US(start.Year()), UK(start.Year())...)
	if start.Month() >= time.November {
		table = append(table, US(start.Year()+1)...)
		table = append(table, UK(start.Year()+1)...)
	}
	// Keep US before UK for a shared date.
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Jurisdiction == model.JurisdictionUS && table[j].Jurisdiction != model.JurisdictionUS
	})

	var out []Upcoming
	for i := 0; i < daysAhead; i++ {
		d := start.AddDate(0, 0, i)
		if l := labels(match(d, table)); len(l) > 0 {
			out = append(out, Upcoming{Date: d, Labels: l})
		}
	}
	return out
}

// IsTradingDay reports whether date is a weekday on which neither market is
// closed.
func IsTradingDay(date time.Time) bool {
	d := Civil(date)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	return len(Holidays(d)) == 0
}

// NextTradingDay returns the first trading day strictly after from.
func NextTradingDay(from time.Time) time.Time {
	d := Civil(from).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
