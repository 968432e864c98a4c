// Package classify decides which scraped calendar rows matter and how they
// are named and tagged. Every decision is driven by the ordered tables below
// so they can be extended or swapped without touching the matching code.
package classify

import (
	"strings"

	"ecocal/internal/model"
)

// RelevantKeywords are matched case-insensitively as substrings.
var RelevantKeywords = []string{
	"interest rate", "fomc", "fed funds", "federal reserve",
	"cpi", "consumer price", "inflation",
	"ppi", "producer price",
	"pce", "personal consumption",
	"retail sales",
	"unemployment", "jobless",
	"non farm", "nonfarm", "payroll", "nfp",
	"gdp", "gross domestic",
	"ecb", "european central bank",
	"boe", "bank of england",
	"ism manufacturing", "manufacturing pmi",
}

// NameRule renames an event when any keyword matches.
type NameRule struct {
	Keywords []string
	Name     string
}

// NameRules are evaluated in order; the first match wins. Specific rules
// (core CPI, named central banks) must stay ahead of the generic ones, so
// "ECB Interest Rate Decision" is named after the ECB even though its
// instruments follow the rates rule.
var NameRules = []NameRule{
	{Keywords: []string{"core cpi", "core inflation"}, Name: "Core CPI - Core Inflation"},
	{Keywords: []string{"cpi", "consumer price", "inflation rate"}, Name: "CPI - Inflation"},
	{Keywords: []string{"ppi", "producer price"}, Name: "PPI - Producer Prices"},
	{Keywords: []string{"pce", "personal consumption"}, Name: "PCE - Fed Inflation Gauge"},
	{Keywords: []string{"ecb", "european central bank"}, Name: "ECB Decision - Rates"},
	{Keywords: []string{"boe", "bank of england"}, Name: "BoE Decision - Rates"},
	{Keywords: []string{"interest rate", "fed funds", "fomc", "federal reserve"}, Name: "Fed Decision - Rates"},
	{Keywords: []string{"non farm", "nonfarm", "payroll", "nfp"}, Name: "NFP - Non-Farm Payroll"},
	{Keywords: []string{"unemployment"}, Name: "Unemployment Rate"},
	{Keywords: []string{"jobless"}, Name: "Jobless Claims"},
	{Keywords: []string{"retail sales"}, Name: "Retail Sales"},
	{Keywords: []string{"gdp", "gross domestic"}, Name: "GDP - Growth"},
	{Keywords: []string{"ism manufacturing", "manufacturing pmi"}, Name: "ISM Manufacturing PMI"},
}

// InstrumentRule maps a keyword group to the futures/crypto it moves.
type InstrumentRule struct {
	Keywords    []string
	Instruments []string
}

// InstrumentRules are evaluated in order; the first match wins. Rates come
// first, so any "interest rate" decision, ECB and BoE included, moves the
// full rates set.
var InstrumentRules = []InstrumentRule{
	{Keywords: []string{"fed", "fomc", "interest rate"}, Instruments: []string{"ES", "NQ", "GC", "6E", "CL", "BTC", "ETH"}},
	{Keywords: []string{"cpi", "ppi", "pce", "inflation", "consumer price", "producer price", "personal consumption"}, Instruments: []string{"ES", "NQ", "GC", "6E", "BTC", "ETH"}},
	{Keywords: []string{"ecb", "european central bank"}, Instruments: []string{"6E", "ES", "NQ", "GC"}},
	{Keywords: []string{"boe", "bank of england"}, Instruments: []string{"6B", "ES", "NQ", "GC"}},
	{Keywords: []string{"gdp", "gross domestic"}, Instruments: []string{"ES", "NQ", "6E"}},
	{Keywords: []string{"non farm", "nonfarm", "payroll", "nfp", "unemployment", "jobless"}, Instruments: []string{"ES", "NQ", "GC", "6E", "CL", "BTC", "ETH"}},
	{Keywords: []string{"retail sales"}, Instruments: []string{"ES", "NQ", "6E", "BTC", "ETH"}},
	{Keywords: []string{"pmi", "ism"}, Instruments: []string{"ES", "NQ", "GC"}},
}

// DefaultInstruments applies when no InstrumentRule matches.
var DefaultInstruments = []string{"ES", "NQ"}

// MinImportance is the lowest importance the parser keeps.
const MinImportance = model.High

const markerPrefix = "calendar-importance-"

// Classifier bundles the tables. The zero value is not usable; use Default
// or fill every table.
type Classifier struct {
	Keywords    []string
	Names       []NameRule
	Instruments []InstrumentRule
	Fallback    []string
}

// Default returns a Classifier over the package tables.
func Default() *Classifier {
	return &Classifier{
		Keywords:    RelevantKeywords,
		Names:       NameRules,
		Instruments: InstrumentRules,
		Fallback:    DefaultInstruments,
	}
}

// IsRelevant reports whether the raw name contains any relevance keyword.
func (c *Classifier) IsRelevant(rawName string) bool {
	return containsAny(strings.ToLower(rawName), c.Keywords)
}

// Simplify returns the display name for rawName, or rawName unchanged.
func (c *Classifier) Simplify(rawName string) string {
	lower := strings.ToLower(rawName)
	for _, r := range c.Names {
		if containsAny(lower, r.Keywords) {
			return r.Name
		}
	}
	return rawName
}

// AffectedInstruments returns a fresh copy of the instrument list for rawName.
func (c *Classifier) AffectedInstruments(rawName string) []string {
	lower := strings.ToLower(rawName)
	for _, r := range c.Instruments {
		if containsAny(lower, r.Keywords) {
			return append([]string(nil), r.Instruments...)
		}
	}
	return append([]string(nil), c.Fallback...)
}

// IsRelevant applies the default tables.
func IsRelevant(rawName string) bool { return Default().IsRelevant(rawName) }

// Simplify applies the default tables.
func Simplify(rawName string) string { return Default().Simplify(rawName) }

// AffectedInstruments applies the default tables.
func AffectedInstruments(rawName string) []string { return Default().AffectedInstruments(rawName) }

// ImportanceFromMarker maps the calendar's importance classes
// (calendar-importance-1..3) onto the unified scale. The highest tier found
// wins; no marker at all means Low.
func ImportanceFromMarker(classes ...string) model.Importance {
	level := model.Low
	for _, cls := range classes {
		idx := strings.Index(cls, markerPrefix)
		if idx < 0 || idx+len(markerPrefix) >= len(cls) {
			continue
		}
		var imp model.Importance
		switch cls[idx+len(markerPrefix)] {
		case '3':
			imp = model.Critical
		case '2':
			imp = model.High
		case '1':
			imp = model.Medium
		default:
			continue
		}
		if imp > level {
			level = imp
		}
	}
	return level
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
