package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// defaultWindow is how far ahead FetchEvents looks when no window is given.
const defaultWindow = 30 * 24 * time.Hour

// CredentialSource supplies the current bearer credential. The token may
// change between calls; the client reads it per request.
type CredentialSource interface {
	oauth2.TokenSource
	HasAccess() bool
}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	creds      CredentialSource
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a new Google Calendar client bound to one calendar.
// The credential source is consulted on every request, so a token adopted
// after construction is picked up without rebuilding the client.
func NewClient(ctx context.Context, logger *slog.Logger, creds CredentialSource, calendarID string) (*CalendarClient, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	service, err := calendar.NewService(ctx, option.WithTokenSource(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, creds: creds, calendarID: calendarID, logger: logger}, nil
}

// FetchEvents fetches the event window from the calendar. Zero times default
// to now and now plus 30 days. Failures come back classified: ErrAuthExpired
// for a rejected credential, TransientError for everything else.
func (c *CalendarClient) FetchEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*calendar.Event, error) {
	if !c.creds.HasAccess() {
		return nil, fmt.Errorf("%w: no credential held", ErrAuthExpired)
	}
	if windowStart.IsZero() {
		windowStart = time.Now().UTC()
	}
	if windowEnd.IsZero() {
		windowEnd = windowStart.Add(defaultWindow)
	}

	c.logger.Debug("Fetching calendar events", "calendarID", c.calendarID,
		"timeMin", windowStart.Format(time.RFC3339), "timeMax", windowEnd.Format(time.RFC3339))

	events, err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}

	c.logger.Info("Fetched events from Google Calendar", "count", len(events.Items), "calendarID", c.calendarID)
	return events.Items, nil
}

// CreateEvent inserts an event into the calendar.
func (c *CalendarClient) CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	if !c.creds.HasAccess() {
		return nil, fmt.Errorf("%w: no credential held", ErrAuthExpired)
	}
	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	c.logger.Info("Created calendar event", "eventID", created.Id)
	return created, nil
}

// UpdateEvent patches an existing event.
func (c *CalendarClient) UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	if !c.creds.HasAccess() {
		return nil, fmt.Errorf("%w: no credential held", ErrAuthExpired)
	}
	updated, err := c.service.Events.Patch(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	c.logger.Info("Updated calendar event", "eventID", eventID)
	return updated, nil
}

// DeleteEvent removes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.creds.HasAccess() {
		return fmt.Errorf("%w: no credential held", ErrAuthExpired)
	}
	if err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	c.logger.Info("Deleted calendar event", "eventID", eventID)
	return nil
}
