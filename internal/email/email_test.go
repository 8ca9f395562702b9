package email

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/kafka"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)

	confirmed := domain.Event{Type: domain.EventAppointmentConfirmed, Start: start, Amount: decimal.NewFromInt(50), Currency: "USD"}
	assert.Equal(t, "Appointment on 2030-01-02 10:00 UTC confirmed, payment of 50.00 USD required", Subject(confirmed))

	cancelled := domain.Event{Type: domain.EventAppointmentCancelled, Start: start, Reason: "sick"}
	assert.Equal(t, "Appointment on 2030-01-02 10:00 UTC cancelled: sick", Subject(cancelled))

	unpaid := domain.Event{Type: domain.EventAppointmentCompleted, Start: start, Unpaid: true}
	assert.Contains(t, Subject(unpaid), "payment outstanding")
}

func TestSender_Send(t *testing.T) {
	s := NewSender(zerolog.Nop())
	err := s.Send(context.Background(), kafka.Notification{RecipientID: uuid.New(), Event: domain.Event{Type: domain.EventAppointmentReminder}})
	assert.NoError(t, err)
}
