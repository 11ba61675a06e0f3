package models

import "time"

// Stage is the lifecycle state of a booking as shown to staff.
type Stage string

const (
	StageConfirmed Stage = "Confirmed"
	StagePending   Stage = "Pending"
)

// SlotLayout is the display rendering used for the Slot field. The merged
// view is ordered by this string, so the layout is part of the contract.
const SlotLayout = "1/2/2006, 3:04:05 PM"

// FormatSlot renders an appointment time the way Slot displays it.
func FormatSlot(t time.Time) string {
	return t.Format(SlotLayout)
}

// Booking represents a consultation appointment.
// This is the canonical record used throughout the platform, whether the
// booking was captured locally or derived from a remote calendar event.
type Booking struct {
	ID            string    `json:"id"`
	Slot          string    `json:"slot"`          // display rendering of the appointment time
	Name          string    `json:"name"`          // client name
	Email         string    `json:"email"`         // client email
	Package       string    `json:"pkg"`           // consultation package
	Stage         Stage     `json:"stage"`         // Confirmed or Pending
	RemoteEventID string    `json:"remoteEventId,omitempty"` // reconciliation key; set when linked to a calendar event
	Description   string    `json:"description,omitempty"`
	AppointmentAt time.Time `json:"appointmentAt,omitzero"` // parsed appointment time; zero when unknown
}
