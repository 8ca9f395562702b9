package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "PENDING"
	PaymentRecordPaid      PaymentRecordStatus = "PAID"
	PaymentRecordFailed    PaymentRecordStatus = "FAILED"
	PaymentRecordCancelled PaymentRecordStatus = "CANCELLED"
	PaymentRecordRefunded  PaymentRecordStatus = "REFUNDED"
)

// Payment mirrors the gateway's record for an appointment. At most one PENDING
// payment exists per appointment and at most one non-surplus payment is PAID.
type Payment struct {
	ID            uuid.UUID           `json:"id"`
	AppointmentID uuid.UUID           `json:"appointmentId"`
	SessionRef    string              `json:"sessionRef"`
	CheckoutURL   string              `json:"checkoutUrl,omitempty"`
	TransactionID string              `json:"transactionId,omitempty"`
	Status        PaymentRecordStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	// Surplus marks a charge that arrived after the appointment was already
	// settled by another payment. It never changes the appointment and is refunded.
	Surplus       bool                `json:"surplus,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// GatewaySession is returned by the gateway when a checkout session is opened.
type GatewaySession struct {
	Ref         string
	CheckoutURL string
}

// GatewayVerification is the gateway's view of a session.
type GatewayVerification struct {
	Paid          bool
	TransactionID string
}
