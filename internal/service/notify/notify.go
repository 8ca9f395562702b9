// Package notify fans domain events out to the notification dispatcher.
// Delivery is fire-and-forget: failures are logged and never returned to the
// operation that produced the event.
package notify

import (
	"context"
	"sync"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Dispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, event domain.Event) error
}

// EventPublisher is implemented by dispatchers that also keep an
// appointment-keyed event stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

type Emitter struct {
	dispatcher Dispatcher
	log        zerolog.Logger
}

func NewEmitter(dispatcher Dispatcher, log zerolog.Logger) *Emitter {
	return &Emitter{dispatcher: dispatcher, log: log}
}

// Emit sends event once to each distinct recipient.
func (e *Emitter) Emit(ctx context.Context, event domain.Event, recipients ...uuid.UUID) {
	if e == nil || e.dispatcher == nil {
		return
	}

	if pub, ok := e.dispatcher.(EventPublisher); ok {
		if err := pub.PublishEvent(ctx, event); err != nil {
			e.log.Warn().Err(err).
				Str("event", string(event.Type)).
				Str("appointment_id", event.AppointmentID.String()).
				Msg("event publish failed")
		}
	}

	for _, userID := range lo.Uniq(recipients) {
		if userID == uuid.Nil {
			continue
		}
		if err := e.dispatcher.Notify(ctx, userID, event); err != nil {
			e.log.Warn().Err(err).
				Str("event", string(event.Type)).
				Str("appointment_id", event.AppointmentID.String()).
				Str("recipient_id", userID.String()).
				Msg("notification dispatch failed")
		}
	}
}

type Delivery struct {
	UserID uuid.UUID
	Event  domain.Event
}

// Recorder is an in-process Dispatcher that keeps every delivery.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

func (r *Recorder) Notify(_ context.Context, userID uuid.UUID, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{UserID: userID, Event: event})
	return r.Err
}

func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Count returns how many deliveries of type t were made.
func (r *Recorder) Count(t domain.EventType) int {
	return lo.CountBy(r.Deliveries(), func(d Delivery) bool { return d.Event.Type == t })
}

// LogDispatcher only logs. It stands in when no broker is configured.
type LogDispatcher struct {
	Log zerolog.Logger
}

func (d LogDispatcher) Notify(_ context.Context, userID uuid.UUID, event domain.Event) error {
	d.Log.Info().
		Str("event", string(event.Type)).
		Str("appointment_id", event.AppointmentID.String()).
		Str("recipient_id", userID.String()).
		Msg("notification")
	return nil
}
