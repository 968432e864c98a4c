package notify

import (
	"fmt"
	"strings"
	"time"

	"ecocal/internal/agenda"
	"ecocal/internal/calendar"
	"ecocal/internal/discord"
	"ecocal/internal/holiday"
	"ecocal/internal/model"
)

// Embed colours, matching Discord's named palette.
const (
	ColorBlue   = 0x3498db
	ColorRed    = 0xe74c3c
	ColorGold   = 0xf1c40f
	ColorOrange = 0xe67e22
)

// MaxInstruments caps how many instruments a line lists.
const MaxInstruments = 5

const (
	noEventsText = "❌ No major economic events this week"
	weeklyFooter = "🔔 Daily reminders at 07:00 for each release | Data: TradingEconomics"
	sourceDown   = "⚠️ Calendar source unavailable, showing recurring releases only"
)

// Flag returns the emoji flag for c.
func Flag(c model.Country) string {
	switch c {
	case model.CountryUS:
		return "🇺🇸"
	case model.CountryEU:
		return "🇪🇺"
	case model.CountryUK:
		return "🇬🇧"
	case model.CountryJP:
		return "🇯🇵"
	default:
		return "🌍"
	}
}

// Stars renders the importance as a row of stars.
func Stars(i model.Importance) string {
	return strings.Repeat("⭐", i.Stars())
}

// Instruments joins at most MaxInstruments symbols.
func Instruments(list []string) string {
	if len(list) > MaxInstruments {
		list = list[:MaxInstruments]
	}
	return strings.Join(list, ", ")
}

// WeeklyMessage builds the weekly digest for days. An empty agenda becomes
// a plain text notice.
func WeeklyMessage(days []agenda.Day, failure calendar.Failure, now time.Time) discord.Message {
	if len(days) == 0 {
		return discord.Message{Content: noEventsText}
	}

	embed := discord.Embed{
		Title:       "📅 Economic agenda - week of " + now.Format("02/01/2006"),
		Color:       ColorBlue,
		Description: "Every release is also a Discord event below ⬇️\n*Hit 'Interested' to be notified*",
		Footer:      &discord.EmbedFooter{Text: weeklyFooter},
	}
	if failure != calendar.FailureNone {
		embed.Description += "\n" + sourceDown
	}

	for _, d := range days {
		ev := d.Event
		value := fmt.Sprintf("⏰ **%s** - %s %s\n   %s | Assets: %s",
			ev.Time, Flag(ev.Country), ev.Name, Stars(ev.Importance), Instruments(ev.Instruments))
		if len(d.Holidays) > 0 {
			value += "\n🔴 **MARKET HOLIDAY:** " + strings.Join(d.Holidays, " | ")
		}
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  fmt.Sprintf("📆 %s (%s)", d.Date.Weekday(), d.Key),
			Value: value,
		})
	}

	if up := holiday.UpcomingHolidays(holiday.Civil(now), 7); len(up) > 0 {
		var b strings.Builder
		for _, h := range up {
			fmt.Fprintf(&b, "• **%s %s:** %s\n", h.Date.Weekday().String()[:3], h.Date.Format("02/01"), strings.Join(h.Labels, " & "))
		}
		b.WriteString("\n⚠️ Markets may be closed or volatility reduced")
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  "🚨 Market holidays this week",
			Value: b.String(),
		})
	}

	return discord.Message{Embeds: []discord.Embed{embed}}
}

// DailyMessage builds today's reminder. ok is false when there is nothing
// worth sending: no events and no holiday.
func DailyMessage(days []agenda.Day, holidays []string, now time.Time) (msg discord.Message, ok bool) {
	dateLine := now.Format("Monday 02 January 2006")

	if len(days) == 0 {
		if len(holidays) == 0 {
			return discord.Message{}, false
		}
		embed := discord.Embed{
			Title:       "🔴 Market holiday - markets closed",
			Color:       ColorRed,
			Description: dateLine,
			Fields: []discord.EmbedField{{
				Name:  "🚨 Holidays",
				Value: strings.Join(holidays, "\n") + "\n\n⚠️ **US and/or UK markets are closed today**\n📊 Expect reduced volatility",
			}},
		}
		return discord.Message{Embeds: []discord.Embed{embed}}, true
	}

	embed := discord.Embed{
		Title:       "🔔 Economic releases today",
		Color:       ColorGold,
		Description: dateLine,
	}
	if len(holidays) > 0 {
		embed.Color = ColorOrange
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  "🔴 WARNING - market holiday",
			Value: strings.Join(holidays, " & ") + "\n⚠️ **Markets may be closed or volatility reduced**",
		})
	}
	for _, d := range days {
		ev := d.Event
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name: fmt.Sprintf("%s %s - %s", Flag(ev.Country), ev.Name, ev.Time),
			Value: fmt.Sprintf("**Importance:** %s\n**Assets:** %s\n%s",
				Stars(ev.Importance), Instruments(ev.Instruments), ev.RawDescription),
		})
	}
	return discord.Message{Embeds: []discord.Embed{embed}}, true
}
