package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"booksync/internal/google"
	"booksync/internal/models"

	"google.golang.org/api/calendar/v3"
)

// LocalStore is the externally owned booking list the merged view reads from.
type LocalStore interface {
	List() ([]models.Booking, error)
}

// RemoteCalendar is the calendar half of the engine.
type RemoteCalendar interface {
	FetchEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*calendar.Event, error)
}

// Syncer reconciles locally recorded bookings with the remote calendar
// window, producing a single deduplicated, slot-ordered view.
type Syncer struct {
	logger   *slog.Logger
	calendar RemoteCalendar
	local    LocalStore
	timezone *time.Location
}

func New(logger *slog.Logger, cal RemoteCalendar, local LocalStore, tz *time.Location) *Syncer {
	if tz == nil {
		tz = time.UTC
	}
	return &Syncer{logger: logger, calendar: cal, local: local, timezone: tz}
}

// Sync performs one reconciliation cycle: read the local list, fetch the
// remote window, convert, merge, sort. The fetch error comes back classified
// (google.ErrAuthExpired or google.TransientError); retrying is the
// caller's decision.
func (s *Syncer) Sync(ctx context.Context) ([]models.Booking, error) {
	local, err := s.local.List()
	if err != nil {
		return nil, fmt.Errorf("failed to read local bookings: %w", err)
	}

	events, err := s.calendar.FetchEvents(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	remote := make([]models.Booking, 0, len(events))
	for _, event := range events {
		remote = append(remote, s.Convert(event))
	}

	view := Merge(local, remote)
	SortBySlot(view)
	s.logger.Info("Sync cycle finished", "local", len(local), "remote", len(remote), "merged", len(view))
	return view, nil
}

// Convert maps a remote calendar event onto the canonical booking shape.
// The mapping is deterministic: the same event always yields the same record.
func (s *Syncer) Convert(event *calendar.Event) models.Booking {
	start := ""
	if event.Start != nil {
		start = event.Start.DateTime
		if start == "" {
			start = event.Start.Date
		}
	}

	// Slot is the display rendering of the start time in the primary
	// timezone. An unparseable start falls through as the raw string.
	slot := start
	var at time.Time
	if ts, err := time.Parse(time.RFC3339, start); err == nil {
		at = ts.In(s.timezone)
		slot = models.FormatSlot(at)
	} else if ts, err := time.ParseInLocation("2006-01-02", start, s.timezone); err == nil {
		// All-day events carry a date only; render midnight.
		at = ts
		slot = models.FormatSlot(at)
	}

	name := "Unknown"
	email := ""
	if len(event.Attendees) > 0 {
		attendee := event.Attendees[0]
		email = attendee.Email
		if attendee.DisplayName != "" {
			name = attendee.DisplayName
		} else if event.Summary != "" {
			name = event.Summary
		}
	} else if event.Summary != "" {
		name = event.Summary
	}

	pkg := event.Location
	if pkg == "" {
		pkg = "Consultation"
	}

	stage := models.StagePending
	if event.Status == "confirmed" {
		stage = models.StageConfirmed
	}

	return models.Booking{
		ID:            event.Id,
		Slot:          slot,
		Name:          name,
		Email:         email,
		Package:       pkg,
		Stage:         stage,
		RemoteEventID: event.Id,
		Description:   event.Description,
		AppointmentAt: at,
	}
}

// Merge appends every remote booking whose remote event id does not already
// occur in the local list. Remote data is strictly additive: a local booking
// linked to an event is authoritative and is never overwritten.
func Merge(local, remote []models.Booking) []models.Booking {
	linked := make(map[string]struct{}, len(local))
	for _, b := range local {
		if b.RemoteEventID != "" {
			linked[b.RemoteEventID] = struct{}{}
		}
	}

	view := make([]models.Booking, 0, len(local)+len(remote))
	view = append(view, local...)
	for _, b := range remote {
		if b.RemoteEventID != "" {
			if _, dup := linked[b.RemoteEventID]; dup {
				continue
			}
		}
		view = append(view, b)
	}
	return view
}

// SortBySlot orders the view ascending by the Slot display string. The key
// is the rendered string, not the underlying timestamp, so ordering follows
// lexicographic string order rather than chronology.
func SortBySlot(view []models.Booking) {
	slices.SortStableFunc(view, func(a, b models.Booking) int {
		return strings.Compare(a.Slot, b.Slot)
	})
}

var _ RemoteCalendar = (*google.CalendarClient)(nil)
