// Package email is the worker-side delivery boundary. Real delivery belongs
// to an external mail provider; the sender renders the message and logs it.
package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/kafka"
	"github.com/rs/zerolog"
)

type Sender struct {
	log zerolog.Logger
}

func NewSender(log zerolog.Logger) *Sender {
	return &Sender{log: log.With().Str("component", "email").Logger()}
}

func (s *Sender) Send(ctx context.Context, n kafka.Notification) error {
	s.log.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("event", string(n.Event.Type)).
		Str("appointment_id", n.Event.AppointmentID.String()).
		Msg(Subject(n.Event))
	return nil
}

// Subject renders a one-line summary of the event for the recipient.
func Subject(e domain.Event) string {
	when := e.Start.Format("2006-01-02 15:04 MST")
	switch e.Type {
	case domain.EventAppointmentRequested:
		return fmt.Sprintf("New appointment request for %s", when)
	case domain.EventAppointmentConfirmed:
		return fmt.Sprintf("Appointment on %s confirmed, payment of %s %s required", when, e.Amount.StringFixed(2), e.Currency)
	case domain.EventAppointmentCancelled:
		if e.Reason != "" {
			return fmt.Sprintf("Appointment on %s cancelled: %s", when, e.Reason)
		}
		return fmt.Sprintf("Appointment on %s cancelled", when)
	case domain.EventAppointmentCompleted:
		if e.Unpaid {
			return fmt.Sprintf("Appointment on %s completed, payment outstanding", when)
		}
		return fmt.Sprintf("Appointment on %s completed", when)
	case domain.EventAppointmentReminder:
		return fmt.Sprintf("Reminder: appointment on %s", when)
	case domain.EventPaymentSucceeded:
		return fmt.Sprintf("Payment of %s %s received", e.Amount.StringFixed(2), e.Currency)
	case domain.EventPaymentRefunded:
		return fmt.Sprintf("Payment of %s %s refunded", e.Amount.StringFixed(2), e.Currency)
	case domain.EventPaymentRefundFailed:
		return fmt.Sprintf("Refund for appointment on %s is delayed", when)
	default:
		return string(e.Type)
	}
}
