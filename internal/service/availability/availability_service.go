package availability

import (
	"context"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AvailabilityUseCase interface {
	Create(ctx context.Context, actor domain.Actor, input WindowInput) (*domain.Availability, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input WindowInput) (*domain.Availability, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error)
}

// SlotInvalidator drops cached slot lists after a window changes.
type SlotInvalidator interface {
	InvalidateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) error
}

type WindowInput struct {
	Date        domain.Date        `json:"date"`
	StartTime   domain.MinuteOfDay `json:"startTime"`
	EndTime     domain.MinuteOfDay `json:"endTime"`
	IsAvailable *bool              `json:"isAvailable,omitempty"`
}

type Service struct {
	windows   repository.AvailabilityRepository
	directory repository.DirectoryRepository
	slots     SlotInvalidator
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Service)

func WithSlotInvalidator(slots SlotInvalidator) Option {
	return func(s *Service) { s.slots = slots }
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

func NewService(windows repository.AvailabilityRepository, directory repository.DirectoryRepository, opts ...Option) *Service {
	s := &Service{
		windows:   windows,
		directory: directory,
		loc:       time.UTC,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, input WindowInput) (*domain.Availability, error) {
	if actor.Role != domain.RoleDoctor {
		return nil, domain.Errorf(domain.ErrForbidden, "only doctors declare availability")
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDoctor(ctx, actor.ID); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.Errorf(domain.ErrInvalidDoctor, "doctor %s", actor.ID)
		}
		return nil, err
	}

	w := &domain.Availability{
		DoctorID:    actor.ID,
		Date:        input.Date,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		IsAvailable: input.IsAvailable == nil || *input.IsAvailable,
	}
	if err := s.windows.Create(ctx, w); err != nil {
		return nil, err
	}

	s.invalidate(ctx, w.DoctorID, w.Date)
	s.log.Info().
		Str("availability_id", w.ID.String()).
		Str("doctor_id", w.DoctorID.String()).
		Str("date", w.Date.String()).
		Msg("availability created")
	return w, nil
}

func (s *Service) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input WindowInput) (*domain.Availability, error) {
	current, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(input); err != nil {
		return nil, err
	}

	w := *current
	w.Date = input.Date
	w.StartTime = input.StartTime
	w.EndTime = input.EndTime
	if input.IsAvailable != nil {
		w.IsAvailable = *input.IsAvailable
	}
	if err := s.windows.Update(ctx, &w); err != nil {
		return nil, err
	}

	s.invalidate(ctx, w.DoctorID, current.Date)
	if w.Date != current.Date {
		s.invalidate(ctx, w.DoctorID, w.Date)
	}
	return &w, nil
}

// Delete removes a window. Appointments already booked inside it stay valid.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	current, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.windows.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, current.DoctorID, current.Date)
	return nil
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error) {
	return s.windows.ListByDoctorDate(ctx, doctorID, date)
}

func (s *Service) owned(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Availability, error) {
	current, err := s.windows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleDoctor || current.DoctorID != actor.ID {
		return nil, domain.Errorf(domain.ErrForbidden, "availability %s belongs to another doctor", id)
	}
	return current, nil
}

func (s *Service) validate(input WindowInput) error {
	if !input.StartTime.Valid() || !input.EndTime.Valid() || input.EndTime <= input.StartTime {
		return domain.Errorf(domain.ErrInvalidWindow, "%s-%s", input.StartTime, input.EndTime)
	}
	today := domain.DateOf(s.now().In(s.loc))
	if input.Date.Before(today) {
		return domain.Errorf(domain.ErrPastDate, "%s is before %s", input.Date, today)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID, date domain.Date) {
	if s.slots == nil {
		return
	}
	if err := s.slots.InvalidateSlots(ctx, doctorID, date); err != nil {
		s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache invalidation failed")
	}
}

var _ AvailabilityUseCase = (*Service)(nil)
