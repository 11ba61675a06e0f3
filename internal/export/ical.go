package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"booksync/internal/models"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// consultationLength is the slot length bookings are exported with.
const consultationLength = 30 * time.Minute

// WriteCalendar encodes the merged booking view as an iCalendar document.
// Bookings without a parsed appointment time are skipped; only records with
// a renderable start can become events.
func WriteCalendar(w io.Writer, view []models.Booking) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//booksync//EN")

	for _, b := range view {
		if b.AppointmentAt.IsZero() {
			continue
		}
		cal.Children = append(cal.Children, toComponent(b))
	}
	if len(cal.Children) == 0 {
		return errors.New("no bookings with an appointment time to export")
	}
	return ical.NewEncoder(w).Encode(cal)
}

// toComponent converts a booking to an iCal VEVENT.
func toComponent(b models.Booking) *ical.Component {
	uid := b.RemoteEventID
	if uid == "" {
		uid = b.ID
	}
	if uid == "" {
		uid = uuid.New().String()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, fmt.Sprintf("%s: %s", b.Package, b.Name))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, b.AppointmentAt)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, b.AppointmentAt.Add(consultationLength))

	if b.Stage == models.StageConfirmed {
		ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	} else {
		ve.Props.SetText(ical.PropStatus, "TENTATIVE")
	}
	if b.Description != "" {
		ve.Props.SetText(ical.PropDescription, b.Description)
	}
	if b.Email != "" {
		// ATTENDEE is a CAL-ADDRESS property; assign the value directly so
		// no VALUE=TEXT parameter is stamped onto it.
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + b.Email
		ve.Props.Add(p)
	}
	return ve
}
