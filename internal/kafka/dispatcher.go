package kafka

import (
	"context"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
)

// Notification is one event addressed to one user.
type Notification struct {
	RecipientID uuid.UUID    `json:"recipient_id"`
	Event       domain.Event `json:"event"`
}

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error
}

// Dispatcher hands notifications to kafka for the worker to deliver. It also
// mirrors every distinct event onto the appointment events topic, keyed by
// appointment so a consumer sees one appointment's history in order.
type Dispatcher struct {
	producer           Publisher
	notificationsTopic string
	eventsTopic        string
	maxRetries         int
}

func NewDispatcher(producer Publisher, notificationsTopic, eventsTopic string, maxRetries int) *Dispatcher {
	return &Dispatcher{
		producer:           producer,
		notificationsTopic: notificationsTopic,
		eventsTopic:        eventsTopic,
		maxRetries:         maxRetries,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, recipientID uuid.UUID, event domain.Event) error {
	return d.producer.PublishWithRetry(ctx, d.notificationsTopic, recipientID.String(),
		Notification{RecipientID: recipientID, Event: event}, d.maxRetries)
}

func (d *Dispatcher) PublishEvent(ctx context.Context, event domain.Event) error {
	if d.eventsTopic == "" {
		return nil
	}
	return d.producer.PublishWithRetry(ctx, d.eventsTopic, event.AppointmentID.String(), event, d.maxRetries)
}
