package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"booksync/internal/google"
	"booksync/internal/models"

	"google.golang.org/api/calendar/v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCalendar struct {
	events []*calendar.Event
	err    error
}

func (f *fakeCalendar) FetchEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*calendar.Event, error) {
	return f.events, f.err
}

type fakeStore struct {
	bookings []models.Booking
	err      error
}

func (f *fakeStore) List() ([]models.Booking, error) {
	return f.bookings, f.err
}

func TestMergeLocalAndRemoteKeepDistinctSlots(t *testing.T) {
	// Same display slot, no shared remote event id: both survive. Identity
	// is the remote event id, never slot equality.
	local := []models.Booking{{ID: "1", Slot: "Tue 10:00"}}
	remote := []models.Booking{{ID: "g1", Slot: "Tue 10:00", RemoteEventID: "g1"}}

	merged := Merge(local, remote)
	if len(merged) != 2 {
		t.Fatalf("merged has %d entries, want 2", len(merged))
	}
}

func TestMergeSuppressesLinkedRemote(t *testing.T) {
	local := []models.Booking{{ID: "1", RemoteEventID: "g1", Name: "Local Copy"}}
	remote := []models.Booking{{ID: "g1", RemoteEventID: "g1", Name: "Remote Copy"}}

	merged := Merge(local, remote)
	if len(merged) != 1 {
		t.Fatalf("merged has %d entries, want 1", len(merged))
	}
	if merged[0].Name != "Local Copy" {
		t.Fatalf("local booking must win, got %q", merged[0].Name)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	local := []models.Booking{
		{ID: "1", Slot: "a", RemoteEventID: "g1"},
		{ID: "2", Slot: "b"},
	}
	remote := []models.Booking{
		{ID: "g1", Slot: "a", RemoteEventID: "g1"},
		{ID: "g2", Slot: "c", RemoteEventID: "g2"},
	}

	first := Merge(local, remote)
	second := Merge(local, remote)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge not idempotent:\n%+v\n%+v", first, second)
	}

	if got := Merge(local, nil); !reflect.DeepEqual(got, local) {
		t.Fatalf("merge with empty remote changed local: %+v", got)
	}
}

func TestMergeDedupInvariant(t *testing.T) {
	local := []models.Booking{
		{ID: "1", RemoteEventID: "g1"},
		{ID: "2", RemoteEventID: "g2"},
	}
	remote := []models.Booking{
		{ID: "g1", RemoteEventID: "g1"},
		{ID: "g2", RemoteEventID: "g2"},
		{ID: "g3", RemoteEventID: "g3"},
	}

	seen := make(map[string]int)
	for _, b := range Merge(local, remote) {
		if b.RemoteEventID != "" {
			seen[b.RemoteEventID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("remote event id %q appears %d times in merged view", id, n)
		}
	}
}

func TestConvert(t *testing.T) {
	s := New(testLogger(), nil, nil, time.UTC)

	tests := []struct {
		name  string
		event *calendar.Event
		want  models.Booking
	}{
		{
			name: "attendee with display name",
			event: &calendar.Event{
				Id:          "g1",
				Summary:     "Estate Planning Call",
				Description: "Bring documents",
				Status:      "confirmed",
				Location:    "Asset Protection Trust",
				Start:       &calendar.EventDateTime{DateTime: "2025-06-03T15:30:00Z"},
				Attendees: []*calendar.EventAttendee{
					{Email: "client@example.com", DisplayName: "Sam Client"},
				},
			},
			want: models.Booking{
				ID:            "g1",
				Slot:          "6/3/2025, 3:30:00 PM",
				Name:          "Sam Client",
				Email:         "client@example.com",
				Package:       "Asset Protection Trust",
				Stage:         models.StageConfirmed,
				RemoteEventID: "g1",
				Description:   "Bring documents",
				AppointmentAt: time.Date(2025, 6, 3, 15, 30, 0, 0, time.UTC),
			},
		},
		{
			name: "attendee without display name falls back to title",
			event: &calendar.Event{
				Id:      "g2",
				Summary: "Consultation Call",
				Status:  "tentative",
				Start:   &calendar.EventDateTime{DateTime: "2025-06-04T09:00:00Z"},
				Attendees: []*calendar.EventAttendee{
					{Email: "quiet@example.com"},
				},
			},
			want: models.Booking{
				ID:            "g2",
				Slot:          "6/4/2025, 9:00:00 AM",
				Name:          "Consultation Call",
				Email:         "quiet@example.com",
				Package:       "Consultation",
				Stage:         models.StagePending,
				RemoteEventID: "g2",
				AppointmentAt: time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "no attendees and no title",
			event: &calendar.Event{Id: "g3", Start: &calendar.EventDateTime{DateTime: "2025-06-05T10:00:00Z"}},
			want: models.Booking{
				ID:            "g3",
				Slot:          "6/5/2025, 10:00:00 AM",
				Name:          "Unknown",
				Package:       "Consultation",
				Stage:         models.StagePending,
				RemoteEventID: "g3",
				AppointmentAt: time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "all-day event uses the date",
			event: &calendar.Event{Id: "g4", Summary: "Filing Deadline", Start: &calendar.EventDateTime{Date: "2025-07-01"}},
			want: models.Booking{
				ID:            "g4",
				Slot:          "7/1/2025, 12:00:00 AM",
				Name:          "Filing Deadline",
				Package:       "Consultation",
				Stage:         models.StagePending,
				RemoteEventID: "g4",
				AppointmentAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "unparseable start passes through raw",
			event: &calendar.Event{Id: "g5", Summary: "Odd", Start: &calendar.EventDateTime{DateTime: "not-a-time"}},
			want: models.Booking{
				ID:            "g5",
				Slot:          "not-a-time",
				Name:          "Odd",
				Package:       "Consultation",
				Stage:         models.StagePending,
				RemoteEventID: "g5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Convert(tt.event)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Convert = %+v\nwant     %+v", got, tt.want)
			}
		})
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	s := New(testLogger(), nil, nil, time.UTC)
	event := &calendar.Event{
		Id:      "g9",
		Summary: "Repeat",
		Start:   &calendar.EventDateTime{DateTime: "2025-06-03T15:30:00Z"},
		Attendees: []*calendar.EventAttendee{
			{Email: "a@example.com", DisplayName: "A"},
		},
	}

	first := s.Convert(event)
	second := s.Convert(event)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Convert not deterministic:\n%+v\n%+v", first, second)
	}
}

// The sort key is the slot display string, so a January slot sorts before a
// December slot from the previous year. This pins the current behavior.
func TestSortBySlotOrdersByDisplayString(t *testing.T) {
	view := []models.Booking{
		{ID: "dec", Slot: "12/28/2025, 3:00:00 PM"},
		{ID: "jan", Slot: "1/5/2026, 9:00:00 AM"},
	}

	SortBySlot(view)
	if view[0].ID != "jan" || view[1].ID != "dec" {
		t.Fatalf("unexpected order: %q, %q", view[0].ID, view[1].ID)
	}
}

func TestSyncPropagatesClassifiedFetchError(t *testing.T) {
	authErr := errors.New("boom")
	s := New(testLogger(),
		&fakeCalendar{err: &google.TransientError{Err: authErr}},
		&fakeStore{},
		time.UTC)

	_, err := s.Sync(context.Background())
	var transient *google.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want TransientError passed through unchanged", err)
	}
}

func TestSyncMergesAndSorts(t *testing.T) {
	local := []models.Booking{
		{ID: "1", Slot: "6/3/2025, 3:30:00 PM", RemoteEventID: "g1", Name: "Local"},
	}
	events := []*calendar.Event{
		{Id: "g1", Summary: "Dup", Start: &calendar.EventDateTime{DateTime: "2025-06-03T15:30:00Z"}},
		{Id: "g2", Summary: "New", Start: &calendar.EventDateTime{DateTime: "2025-06-02T10:00:00Z"}},
	}

	s := New(testLogger(), &fakeCalendar{events: events}, &fakeStore{bookings: local}, time.UTC)
	view, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if len(view) != 2 {
		t.Fatalf("view has %d entries, want 2", len(view))
	}
	if view[0].RemoteEventID != "g2" {
		t.Fatalf("view[0] = %+v, want the earlier remote booking first", view[0])
	}
	if view[1].Name != "Local" {
		t.Fatalf("view[1] = %+v, want the authoritative local booking", view[1])
	}
}
