package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventAppointmentRequested EventType = "appointment.requested"
	EventAppointmentConfirmed EventType = "appointment.confirmed"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"
	EventAppointmentReminder  EventType = "appointment.reminder"
	EventPaymentSucceeded     EventType = "payment.succeeded"
	EventPaymentRefunded      EventType = "payment.refunded"
	EventPaymentRefundFailed  EventType = "payment.refund_failed"
)

// Event is the payload handed to the notification dispatcher.
type Event struct {
	Type          EventType       `json:"type"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	DoctorID      uuid.UUID       `json:"doctor_id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Start         time.Time       `json:"start"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Unpaid        bool            `json:"unpaid,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEvent fills an event from the appointment's current state.
func NewEvent(t EventType, a *Appointment) Event {
	return Event{
		Type:          t,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Start:         a.Start,
		Amount:        a.Amount,
		Currency:      a.Currency,
		OccurredAt:    time.Now().UTC(),
	}
}
