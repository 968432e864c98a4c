// Package notify turns built agendas into channel messages and guild
// scheduled events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecocal/internal/agenda"
	"ecocal/internal/discord"
	"ecocal/internal/holiday"
	appLog "ecocal/internal/log"
	"ecocal/internal/model"
)

// DefaultWeeklyDays is the look-ahead of the weekly digest.
const DefaultWeeklyDays = 7

// EventLocation is shown as the location of created scheduled events. It
// also tags them as ours for the next sync.
const EventLocation = "Economic calendar"

// ManagedMarker closes the description of every created scheduled event.
const ManagedMarker = "Auto-created by ecocal"

// EventDuration is how long each scheduled event lasts.
const EventDuration = time.Hour

// VariableStart is used for events without a fixed release time.
var VariableStart = model.TimeOfDay{Hour: 9}

// ManagedKeywords catch events created before they carried the
// EventLocation/ManagedMarker tag. Matching events are deleted on sync.
var ManagedKeywords = []string{"nfp", "cpi", "fed", "ecb", "oil", "earnings", "pce", "ppi", "gdp", "boe"}

// Publisher delivers to the chat platform. *discord.Client implements it.
type Publisher interface {
	SendMessage(ctx context.Context, channelID string, msg discord.Message) error
	ListScheduledEvents(ctx context.Context, guildID string) ([]discord.ScheduledEvent, error)
	DeleteScheduledEvent(ctx context.Context, guildID, eventID string) error
	CreateScheduledEvent(ctx context.Context, guildID string, ev discord.ScheduledEvent) (discord.ScheduledEvent, error)
}

// AgendaBuilder is satisfied by *agenda.Builder.
type AgendaBuilder interface {
	Weekly(ctx context.Context, days int) agenda.Agenda
	Daily(ctx context.Context) agenda.Agenda
}

type Service struct {
	Builder   AgendaBuilder
	Publisher Publisher
	ChannelID string
	// GuildID enables scheduled-event sync when set.
	GuildID    string
	WeeklyDays int
	DisplayLoc *time.Location
	Now        func() time.Time
}

// RunWeekly builds the week ahead, mirrors it as scheduled events and posts
// the digest. A failed sync is logged and does not stop the post.
func (s *Service) RunWeekly(ctx context.Context) error {
	days := s.WeeklyDays
	if days <= 0 {
		days = DefaultWeeklyDays
	}
	built := s.Builder.Weekly(ctx, days)
	annotated := agenda.Annotate(built.Events)
	appLog.Info("weekly agenda built", "events", len(annotated), "failure", built.Failure.String())

	if s.GuildID != "" {
		if _, err := s.SyncScheduledEvents(ctx, annotated); err != nil {
			appLog.Error("scheduled event sync incomplete", err, "guild_id", s.GuildID)
		}
	}

	msg := WeeklyMessage(annotated, built.Failure, s.now())
	if err := s.Publisher.SendMessage(ctx, s.ChannelID, msg); err != nil {
		return fmt.Errorf("weekly agenda: %w", err)
	}
	appLog.Info("weekly agenda sent", "channel_id", s.ChannelID, "events", len(annotated))
	return nil
}

// RunDaily posts today's releases, or a holiday alert when markets are
// closed and nothing is scheduled. Nothing is sent on a quiet day.
func (s *Service) RunDaily(ctx context.Context) error {
	now := s.now()
	built := s.Builder.Daily(ctx)
	annotated := agenda.Annotate(built.Events)
	holidays := holiday.IsMarketHoliday(now)

	msg, ok := DailyMessage(annotated, holidays, now)
	if !ok {
		appLog.Info("daily reminder: nothing to send", "date", now.Format(model.DateLayout))
		return nil
	}
	if err := s.Publisher.SendMessage(ctx, s.ChannelID, msg); err != nil {
		return fmt.Errorf("daily reminder: %w", err)
	}
	appLog.Info("daily reminder sent", "channel_id", s.ChannelID, "events", len(annotated), "holidays", len(holidays))
	return nil
}

// SyncScheduledEvents deletes previously created events and creates one per
// upcoming day. Individual failures are logged and joined into the returned
// error; the remaining days are still attempted.
func (s *Service) SyncScheduledEvents(ctx context.Context, days []agenda.Day) (int, error) {
	var errs []error

	existing, err := s.Publisher.ListScheduledEvents(ctx, s.GuildID)
	if err != nil {
		errs = append(errs, err)
	}
	for _, ev := range existing {
		if !IsManaged(ev) {
			continue
		}
		if err := s.Publisher.DeleteScheduledEvent(ctx, s.GuildID, ev.ID); err != nil {
			appLog.Warn("scheduled event delete failed", "id", ev.ID, "name", ev.Name, "error", err.Error())
			errs = append(errs, err)
		}
	}

	now := s.now()
	created := 0
	for _, d := range days {
		start := s.startOf(d)
		if start.Before(now) {
			continue
		}
		if _, err := s.Publisher.CreateScheduledEvent(ctx, s.GuildID, scheduledEvent(d, start)); err != nil {
			appLog.Warn("scheduled event create failed", "date", d.Key, "name", d.Event.Name, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		created++
		appLog.Debug("scheduled event created", "date", d.Key, "name", d.Event.Name)
	}

	appLog.Info("scheduled events synced", "created", created, "deleted_candidates", len(existing))
	return created, errors.Join(errs...)
}

// IsManaged reports whether ev was created by a previous sync: it carries
// the external location tag or the description marker, or its name matches
// ManagedKeywords.
func IsManaged(ev discord.ScheduledEvent) bool {
	if ev.EntityType == discord.EntityExternal && ev.EntityMetadata != nil && ev.EntityMetadata.Location == EventLocation {
		return true
	}
	if strings.HasSuffix(strings.TrimSpace(ev.Description), ManagedMarker) {
		return true
	}
	lower := strings.ToLower(ev.Name)
	for _, kw := range ManagedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *Service) startOf(d agenda.Day) time.Time {
	if !d.Event.Time.Variable {
		return d.Event.At
	}
	loc := s.DisplayLoc
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), VariableStart.Hour, VariableStart.Minute, 0, 0, loc)
}

func scheduledEvent(d agenda.Day, start time.Time) discord.ScheduledEvent {
	ev := d.Event
	end := start.Add(EventDuration).UTC()
	return discord.ScheduledEvent{
		Name: fmt.Sprintf("%s %s", Flag(ev.Country), ev.Name),
		Description: fmt.Sprintf("**Importance:** %s\n**Time:** %s (local)\n**Assets:** %s\n\n%s\n\n%s",
			Stars(ev.Importance), ev.Time, Instruments(ev.Instruments), ev.RawDescription, ManagedMarker),
		ScheduledStartTime: start.UTC(),
		ScheduledEndTime:   &end,
		PrivacyLevel:       discord.PrivacyGuildOnly,
		EntityType:         discord.EntityExternal,
		EntityMetadata:     &discord.EntityMetadata{Location: EventLocation},
	}
}

func (s *Service) now() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.DisplayLoc != nil {
		now = now.In(s.DisplayLoc)
	}
	return now
}
