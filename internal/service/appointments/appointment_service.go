package appointments

import (
	"context"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/Domenick1991/medbooking/internal/service/notify"
	"github.com/Domenick1991/medbooking/internal/service/slots"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type AppointmentUseCase interface {
	Book(ctx context.Context, actor domain.Actor, input BookInput) (*domain.Appointment, error)
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Appointment, error)
	Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error)
	ListMine(ctx context.Context, actor domain.Actor, status domain.AppointmentStatus) ([]domain.Appointment, error)
}

// SlotLocker is a short best-effort lock that keeps concurrent attempts on
// one slot from all reaching the database. The database stays the guard.
type SlotLocker interface {
	AcquireSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time) error
}

// Refunder reverses the payment of an appointment that was cancelled after
// it was paid.
type Refunder interface {
	RefundCancelled(ctx context.Context, a *domain.Appointment) (*domain.Appointment, error)
}

type BookInput struct {
	DoctorID uuid.UUID `json:"doctorId"`
	Start    time.Time `json:"startDateTime"`
	End      time.Time `json:"endDateTime"`
}

type Service struct {
	appointments repository.AppointmentRepository
	windows      repository.AvailabilityRepository
	directory    repository.DirectoryRepository
	payments     repository.PaymentRepository
	events       *notify.Emitter
	locker       SlotLocker
	refunder     Refunder
	lockTTL      time.Duration
	currency     string
	listLimit    int
	loc          *time.Location
	now          func() time.Time
	log          zerolog.Logger
}

type Option func(*Service)

func WithEmitter(events *notify.Emitter) Option {
	return func(s *Service) { s.events = events }
}

func WithSlotLocker(locker SlotLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithRefunder(refunder Refunder) Option {
	return func(s *Service) { s.refunder = refunder }
}

func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = currency }
}

func WithListLimit(limit int) Option {
	return func(s *Service) { s.listLimit = limit }
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

func NewService(repos repository.Repositories, opts ...Option) *Service {
	s := &Service{
		appointments: repos.Appointments,
		windows:      repos.Availability,
		directory:    repos.Directory,
		payments:     repos.Payments,
		lockTTL:      10 * time.Second,
		currency:     "USD",
		listLimit:    100,
		loc:          time.UTC,
		now:          time.Now,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRefunder wires the payment service after both services exist.
func (s *Service) SetRefunder(refunder Refunder) {
	s.refunder = refunder
}

func (s *Service) Book(ctx context.Context, actor domain.Actor, input BookInput) (*domain.Appointment, error) {
	if actor.Role != domain.RolePatient {
		return nil, domain.Errorf(domain.ErrForbidden, "only patients request appointments")
	}

	doctor, err := s.directory.GetDoctor(ctx, input.DoctorID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.Errorf(domain.ErrInvalidDoctor, "doctor %s does not exist", input.DoctorID)
		}
		return nil, err
	}
	if !doctor.Active {
		return nil, domain.Errorf(domain.ErrInvalidDoctor, "doctor %s is not active", doctor.ID)
	}

	start, end := input.Start.UTC(), input.End.UTC()
	if end.Sub(start) != domain.SlotDuration {
		return nil, domain.Errorf(domain.ErrBadDuration, "got %s", end.Sub(start))
	}
	if !start.After(s.now()) {
		return nil, domain.Errorf(domain.ErrPastTime, "%s", start.Format(time.RFC3339))
	}

	if _, err := s.directory.GetPatient(ctx, actor.ID); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.Errorf(domain.ErrInvalidPatient, "patient %s does not exist", actor.ID)
		}
		return nil, err
	}
	if actor.ID == doctor.ID {
		return nil, domain.Errorf(domain.ErrInvalidPatient, "a doctor cannot book with themselves")
	}

	if err := s.checkWindow(ctx, doctor.ID, start, end); err != nil {
		return nil, err
	}

	if s.locker != nil {
		ok, err := s.locker.AcquireSlotLock(ctx, doctor.ID, start, s.lockTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("doctor_id", doctor.ID.String()).Msg("slot lock unavailable, relying on store")
		case !ok:
			return nil, domain.Errorf(domain.ErrSlotUnavailable, "slot %s is being booked", start.Format(time.RFC3339))
		default:
			defer func() {
				if err := s.locker.ReleaseSlotLock(context.WithoutCancel(ctx), doctor.ID, start); err != nil {
					s.log.Warn().Err(err).Msg("slot lock release failed")
				}
			}()
		}
	}

	a := &domain.Appointment{
		DoctorID:  doctor.ID,
		PatientID: actor.ID,
		Start:     start,
		End:       end,
	}
	if err := s.appointments.CreateRequested(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("to", string(a.Status)).
		Msg("appointment requested")
	s.events.Emit(ctx, domain.NewEvent(domain.EventAppointmentRequested, a), a.DoctorID)
	return a, nil
}

// checkWindow requires [start, end) to be one of the tiles of an active
// window, so booking accepts exactly what slot listing offers.
func (s *Service) checkWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) error {
	date := domain.DateOf(start.In(s.loc))
	windows, err := s.windows.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return err
	}
	if !lo.SomeBy(windows, func(w domain.Availability) bool { return slots.Covers(w, s.loc, start, end) }) {
		return domain.Errorf(domain.ErrSlotUnavailable, "outside the doctor's availability")
	}
	return nil
}

func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.For(actor).CanConfirm(current) {
		return nil, domain.Errorf(domain.ErrForbidden, "only the appointment's doctor may confirm")
	}
	if _, err := lifecycle.Next(current.Status, lifecycle.ActionConfirm); err != nil {
		return nil, err
	}
	if !current.Start.After(s.now()) {
		return nil, domain.Errorf(domain.ErrPastTime, "appointment started at %s", current.Start.Format(time.RFC3339))
	}

	doctor, err := s.directory.GetDoctor(ctx, current.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.ConsultationPrice.IsPositive() {
		return nil, domain.Errorf(domain.ErrPricingNotConfigured, "doctor %s", doctor.ID)
	}

	updated, err := s.appointments.Confirm(ctx, id, doctor.ConsultationPrice, s.currency)
	if err != nil {
		return nil, err
	}

	s.logTransition(current, updated, "appointment confirmed")
	s.events.Emit(ctx, domain.NewEvent(domain.EventAppointmentConfirmed, updated), updated.PatientID)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Appointment, error) {
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.For(actor).CanCancel(current) {
		return nil, domain.Errorf(domain.ErrForbidden, "not a participant of appointment %s", id)
	}
	to, err := lifecycle.Next(current.Status, lifecycle.ActionCancel)
	if err != nil {
		return nil, err
	}

	updated, err := s.appointments.Transition(ctx, id, lifecycle.ActionCancel, to, reason)
	if err != nil {
		return nil, err
	}
	s.logTransition(current, updated, "appointment cancelled")

	if err := s.payments.CancelPendingForAppointment(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", id.String()).Msg("closing pending payment failed")
	}

	event := domain.NewEvent(domain.EventAppointmentCancelled, updated)
	event.Reason = reason
	s.events.Emit(ctx, event, counterParties(actor, updated)...)

	if updated.PaymentStatus == domain.PaymentPaid && s.refunder != nil {
		refunded, err := s.refunder.RefundCancelled(ctx, updated)
		if err != nil {
			s.log.Warn().Err(err).
				Str("appointment_id", id.String()).
				Msg("refund after cancellation failed, will be retried")
		} else {
			updated = refunded
		}
	}
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.For(actor).CanComplete(current) {
		return nil, domain.Errorf(domain.ErrForbidden, "only the appointment's doctor or an administrator may complete")
	}
	to, err := lifecycle.Next(current.Status, lifecycle.ActionComplete)
	if err != nil {
		return nil, err
	}

	updated, err := s.appointments.Transition(ctx, id, lifecycle.ActionComplete, to, "")
	if err != nil {
		return nil, err
	}
	s.logTransition(current, updated, "appointment completed")

	event := domain.NewEvent(domain.EventAppointmentCompleted, updated)
	if updated.PaymentStatus != domain.PaymentPaid {
		event.Unpaid = true
		s.log.Warn().
			Str("appointment_id", id.String()).
			Str("doctor_id", updated.DoctorID.String()).
			Str("payment_status", string(updated.PaymentStatus)).
			Msg("appointment completed without payment")
	}
	s.events.Emit(ctx, event, updated.PatientID)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.For(actor).CanView(a) {
		return nil, domain.Errorf(domain.ErrForbidden, "not a participant of appointment %s", id)
	}
	return a, nil
}

func (s *Service) ListMine(ctx context.Context, actor domain.Actor, status domain.AppointmentStatus) ([]domain.Appointment, error) {
	switch status {
	case "", domain.AppointmentRequested, domain.AppointmentConfirmed, domain.AppointmentCancelled, domain.AppointmentCompleted:
	default:
		return nil, domain.Errorf(domain.ErrInvalidInput, "unknown status %q", status)
	}
	return s.appointments.ListByParticipant(ctx, actor.ID, status, s.listLimit)
}

// SendReminders notifies both parties of confirmed appointments starting
// within the next day and returns how many appointments were covered.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	from := s.now()
	upcoming, err := s.appointments.ListConfirmedBetween(ctx, from, from.Add(24*time.Hour))
	if err != nil {
		return 0, err
	}
	for i := range upcoming {
		a := &upcoming[i]
		s.events.Emit(ctx, domain.NewEvent(domain.EventAppointmentReminder, a), a.PatientID, a.DoctorID)
	}
	return len(upcoming), nil
}

func (s *Service) logTransition(from, to *domain.Appointment, msg string) {
	s.log.Info().
		Str("appointment_id", to.ID.String()).
		Str("doctor_id", to.DoctorID.String()).
		Str("from", string(from.Status)).
		Str("to", string(to.Status)).
		Msg(msg)
}

// counterParties returns who must hear about an action taken by actor.
func counterParties(actor domain.Actor, a *domain.Appointment) []uuid.UUID {
	switch actor.ID {
	case a.PatientID:
		return []uuid.UUID{a.DoctorID}
	case a.DoctorID:
		return []uuid.UUID{a.PatientID}
	default:
		return []uuid.UUID{a.PatientID, a.DoctorID}
	}
}

var _ AppointmentUseCase = (*Service)(nil)
