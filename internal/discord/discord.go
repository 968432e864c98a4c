// Package discord is a small REST client for the parts of the Discord API
// the notifier uses: channel messages and guild scheduled events.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "ecocal/internal/log"
	"ecocal/internal/metrics"
)

const (
	DefaultAPIBase = "https://discord.com/api/v10"
	DefaultTimeout = 15 * time.Second
)

// Scheduled event constants from the Discord API.
const (
	PrivacyGuildOnly = 2
	EntityExternal   = 3
)

// ErrMissingToken is returned by New when no bot token is configured.
var ErrMissingToken = errors.New("discord: bot token is empty")

// APIError is a non-2xx reply from Discord.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: status %d: %s", e.Status, e.Body)
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// Message is the body of a channel message create call.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type EntityMetadata struct {
	Location string `json:"location,omitempty"`
}

type ScheduledEvent struct {
	ID                 string          `json:"id,omitempty"`
	GuildID            string          `json:"guild_id,omitempty"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	ScheduledStartTime time.Time       `json:"scheduled_start_time"`
	ScheduledEndTime   *time.Time      `json:"scheduled_end_time,omitempty"`
	PrivacyLevel       int             `json:"privacy_level"`
	EntityType         int             `json:"entity_type"`
	EntityMetadata     *EntityMetadata `json:"entity_metadata,omitempty"`
}

// Client talks to the Discord REST API as a bot user.
type Client struct {
	http *resty.Client
}

// New returns a client for apiBase (DefaultAPIBase when empty).
func New(apiBase, token string, timeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(apiBase).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Authorization", "Bot "+token).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "DiscordBot (ecocal, 1.0)")
	return &Client{http: client}, nil
}

// SendMessage posts msg to channelID.
func (c *Client) SendMessage(ctx context.Context, channelID string, msg Message) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("channel", channelID).
		SetBody(msg).
		Post("/channels/{channel}/messages")
	return c.finish("send_message", resp, err)
}

// ListScheduledEvents returns every scheduled event of guildID.
func (c *Client) ListScheduledEvents(ctx context.Context, guildID string) ([]ScheduledEvent, error) {
	var out []ScheduledEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("guild", guildID).
		SetResult(&out).
		Get("/guilds/{guild}/scheduled-events")
	if err := c.finish("list_events", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteScheduledEvent removes eventID from guildID.
func (c *Client) DeleteScheduledEvent(ctx context.Context, guildID, eventID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"guild": guildID, "event": eventID}).
		Delete("/guilds/{guild}/scheduled-events/{event}")
	return c.finish("delete_event", resp, err)
}

// CreateScheduledEvent creates ev in guildID and returns Discord's copy.
func (c *Client) CreateScheduledEvent(ctx context.Context, guildID string, ev ScheduledEvent) (ScheduledEvent, error) {
	var out ScheduledEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("guild", guildID).
		SetBody(ev).
		SetResult(&out).
		Post("/guilds/{guild}/scheduled-events")
	if err := c.finish("create_event", resp, err); err != nil {
		return ScheduledEvent{}, err
	}
	return out, nil
}

func (c *Client) finish(kind string, resp *resty.Response, err error) error {
	if err == nil && resp.IsError() {
		err = &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	metrics.Delivery.WithLabelValues(kind, metrics.Result(err)).Inc()
	if err != nil {
		appLog.Error("discord request failed", err, "kind", kind)
		return fmt.Errorf("discord %s: %w", kind, err)
	}
	appLog.Debug("discord request ok", "kind", kind, "status", resp.StatusCode())
	return nil
}
