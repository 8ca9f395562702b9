package slots

import (
	"context"
	"sort"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type SlotUseCase interface {
	GenerateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error)
}

// Cache holds the candidate slots tiled from a doctor's windows for a day.
// Entries are invalidated when a window changes.
type Cache interface {
	GetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error)
	SetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date, slots []domain.Slot) error
	InvalidateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) error
}

type Service struct {
	windows      repository.AvailabilityRepository
	appointments repository.AppointmentRepository
	cache        Cache
	loc          *time.Location
	now          func() time.Time
	log          zerolog.Logger
}

type Option func(*Service)

func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(windows repository.AvailabilityRepository, appointments repository.AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		windows:      windows,
		appointments: appointments,
		loc:          time.UTC,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSlots returns the free 30-minute slots of the doctor on date,
// sorted by start. Slots that already started are never returned.
//
// Only the tiled candidates of the doctor's windows are cached. Active
// appointments are subtracted from a live read on every call.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	candidates, err := s.candidates(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.Slot{}, nil
	}

	dayStart := date.At(0, s.loc)
	dayEnd := date.At(24*60, s.loc)
	booked, err := s.appointments.ListActiveByDoctor(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return lo.Filter(candidates, func(slot domain.Slot, _ int) bool {
		return slot.Start.After(now) && !lo.SomeBy(booked, func(a domain.Appointment) bool {
			return a.Overlaps(slot.Start, slot.End)
		})
	}), nil
}

func (s *Service) candidates(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	if s.cache != nil {
		slots, err := s.cache.GetSlots(ctx, doctorID, date)
		if err == nil && slots != nil {
			return slots, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache read failed")
		}
	}

	windows, err := s.windows.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	slots := lo.FlatMap(windows, func(w domain.Availability, _ int) []domain.Slot {
		if !w.IsAvailable {
			return nil
		}
		return Tile(w, s.loc)
	})
	if slots == nil {
		slots = []domain.Slot{}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	if s.cache != nil {
		if err := s.cache.SetSlots(ctx, doctorID, date, slots); err != nil {
			s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache write failed")
		}
	}
	return slots, nil
}

// Tile cuts a window into consecutive 30-minute slots from its start and
// drops a trailing remainder shorter than a slot.
func Tile(w domain.Availability, loc *time.Location) []domain.Slot {
	start := w.Date.At(w.StartTime, loc)
	end := w.Date.At(w.EndTime, loc)

	var out []domain.Slot
	for cur := start; !cur.Add(domain.SlotDuration).After(end); cur = cur.Add(domain.SlotDuration) {
		out = append(out, domain.Slot{Start: cur.UTC(), End: cur.Add(domain.SlotDuration).UTC()})
	}
	return out
}

// Covers reports whether [start, end) is exactly one of the tiles of w.
func Covers(w domain.Availability, loc *time.Location, start, end time.Time) bool {
	if !w.IsAvailable || end.Sub(start) != domain.SlotDuration {
		return false
	}
	wStart := w.Date.At(w.StartTime, loc)
	wEnd := w.Date.At(w.EndTime, loc)
	if start.Before(wStart) || end.After(wEnd) {
		return false
	}
	return start.Sub(wStart)%domain.SlotDuration == 0
}

var _ SlotUseCase = (*Service)(nil)
