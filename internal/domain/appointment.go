package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SlotDuration is the fixed length of every bookable slot and appointment.
const SlotDuration = 30 * time.Minute

type AppointmentStatus string

const (
	AppointmentRequested AppointmentStatus = "REQUESTED"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
)

// Active reports whether the appointment still occupies its doctor's time.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentRequested || s == AppointmentConfirmed
}

// Terminal reports whether no further transition is possible.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentCancelled || s == AppointmentCompleted
}

type PaymentStatus string

const (
	PaymentNone     PaymentStatus = "NONE"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Appointment struct {
	ID            uuid.UUID         `json:"id"`
	DoctorID      uuid.UUID         `json:"doctorId"`
	PatientID     uuid.UUID         `json:"patientId"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	CancelReason  string            `json:"cancelReason,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Overlaps applies the half-open interval test [Start, End) against [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return Overlaps(a.Start, a.End, start, end)
}

// Participant reports whether userID is the doctor or the patient of the appointment.
func (a *Appointment) Participant(userID uuid.UUID) bool {
	return a.DoctorID == userID || a.PatientID == userID
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
