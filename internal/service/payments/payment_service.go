package payments

import (
	"context"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/Domenick1991/medbooking/internal/service/notify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentUseCase interface {
	CreateSession(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Payment, error)
	OnGatewayConfirmed(ctx context.Context, sessionRef string) (*domain.Appointment, error)
	OnGatewayClosed(ctx context.Context, sessionRef string, status domain.PaymentRecordStatus) error
	Refund(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Appointment, error)
}

// Gateway is the external payment provider. Every call is idempotent on the
// provider side, keyed by payment attempt or transaction id.
type Gateway interface {
	CreateSession(ctx context.Context, a *domain.Appointment, attemptID uuid.UUID) (domain.GatewaySession, error)
	VerifySession(ctx context.Context, ref string) (domain.GatewayVerification, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal, currency string) error
}

type Service struct {
	appointments   repository.AppointmentRepository
	payments       repository.PaymentRepository
	gateway        Gateway
	events         *notify.Emitter
	reconcileAfter time.Duration
	batchSize      int
	now            func() time.Time
	log            zerolog.Logger
}

type Option func(*Service)

func WithEmitter(events *notify.Emitter) Option {
	return func(s *Service) { s.events = events }
}

func WithReconcileAfter(d time.Duration) Option {
	return func(s *Service) { s.reconcileAfter = d }
}

func WithBatchSize(n int) Option {
	return func(s *Service) { s.batchSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(repos repository.Repositories, gateway Gateway, opts ...Option) *Service {
	s := &Service{
		appointments:   repos.Appointments,
		payments:       repos.Payments,
		gateway:        gateway,
		reconcileAfter: 15 * time.Minute,
		batchSize:      100,
		now:            time.Now,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a gateway checkout for a confirmed, unpaid
// appointment. A pending payment that already exists is returned as is.
func (s *Service) CreateSession(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Payment, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.For(actor).CanPay(a) {
		return nil, domain.Errorf(domain.ErrForbidden, "only the patient may pay for appointment %s", appointmentID)
	}
	if a.Status != domain.AppointmentConfirmed || a.PaymentStatus != domain.PaymentPending {
		return nil, domain.Errorf(domain.ErrNotPayable, "appointment is %s with payment %s", a.Status, a.PaymentStatus)
	}

	if existing, err := s.payments.GetPendingByAppointment(ctx, appointmentID); err == nil {
		return existing, nil
	} else if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}

	attemptID := uuid.New()
	session, err := s.gateway.CreateSession(ctx, a, attemptID)
	if err != nil {
		return nil, err
	}

	p, created, err := s.payments.CreatePending(ctx, &domain.Payment{
		ID:            attemptID,
		AppointmentID: a.ID,
		SessionRef:    session.Ref,
		CheckoutURL:   session.CheckoutURL,
		Amount:        a.Amount,
		Currency:      a.Currency,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().
			Str("appointment_id", a.ID.String()).
			Str("payment_id", p.ID.String()).
			Str("session_ref", p.SessionRef).
			Msg("payment session opened")
	} else if p.SessionRef == session.Ref && p.ID != attemptID {
		s.log.Warn().
			Str("appointment_id", a.ID.String()).
			Str("payment_id", p.ID.String()).
			Str("session_ref", p.SessionRef).
			Msg("gateway returned a known session")
	}
	return p, nil
}

// OnGatewayConfirmed settles the payment behind sessionRef after checking
// with the gateway. Repeated deliveries return the current state without
// emitting events again.
func (s *Service) OnGatewayConfirmed(ctx context.Context, sessionRef string) (*domain.Appointment, error) {
	p, err := s.payments.GetByGatewayRef(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PaymentRecordPaid || p.Status == domain.PaymentRecordRefunded {
		return s.appointments.GetByID(ctx, p.AppointmentID)
	}

	v, err := s.gateway.VerifySession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if !v.Paid {
		return nil, domain.Errorf(domain.ErrPaymentIncomplete, "session %s", sessionRef)
	}
	return s.settle(ctx, p, v.TransactionID)
}

func (s *Service) settle(ctx context.Context, p *domain.Payment, transactionID string) (*domain.Appointment, error) {
	a, outcome, err := s.payments.MarkPaid(ctx, p.ID, transactionID)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case repository.SettleNoop:
		return a, nil
	case repository.SettleSurplus:
		s.log.Warn().
			Str("appointment_id", a.ID.String()).
			Str("payment_id", p.ID.String()).
			Str("transaction_id", transactionID).
			Str("payment_status", string(a.PaymentStatus)).
			Msg("appointment already settled, refunding extra payment")
		surplus := *p
		surplus.Status = domain.PaymentRecordPaid
		surplus.TransactionID = transactionID
		if err := s.refundSurplus(ctx, &surplus); err != nil {
			s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("refund of extra payment failed, will be retried")
		}
		return a, nil
	}

	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("payment_id", p.ID.String()).
		Str("transaction_id", transactionID).
		Str("to", string(domain.PaymentPaid)).
		Msg("payment settled")
	s.events.Emit(ctx, domain.NewEvent(domain.EventPaymentSucceeded, a), a.PatientID, a.DoctorID)

	if a.Status == domain.AppointmentCancelled {
		refunded, err := s.RefundCancelled(ctx, a)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("refund of late payment failed, will be retried")
			return a, nil
		}
		return refunded, nil
	}
	return a, nil
}

// refundSurplus reverses a payment that never settled its appointment. The
// appointment keeps its payment status.
func (s *Service) refundSurplus(ctx context.Context, p *domain.Payment) error {
	if err := s.gateway.Refund(ctx, p.TransactionID, p.Amount, p.Currency); err != nil {
		return err
	}
	_, applied, err := s.payments.MarkRefunded(ctx, p.ID)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info().
			Str("appointment_id", p.AppointmentID.String()).
			Str("payment_id", p.ID.String()).
			Str("transaction_id", p.TransactionID).
			Msg("extra payment refunded")
	}
	return nil
}

// OnGatewayClosed records a failed or expired session. The appointment keeps
// paymentStatus PENDING so the patient can open a new session.
func (s *Service) OnGatewayClosed(ctx context.Context, sessionRef string, status domain.PaymentRecordStatus) error {
	if status != domain.PaymentRecordFailed && status != domain.PaymentRecordCancelled {
		return domain.Errorf(domain.ErrInvalidInput, "cannot close a payment as %s", status)
	}
	p, err := s.payments.GetByGatewayRef(ctx, sessionRef)
	if err != nil {
		return err
	}
	closed, err := s.payments.MarkClosed(ctx, p.ID, status)
	if err != nil {
		return err
	}
	if closed {
		s.log.Info().
			Str("appointment_id", p.AppointmentID.String()).
			Str("payment_id", p.ID.String()).
			Str("to", string(status)).
			Msg("payment session closed")
	}
	return nil
}

func (s *Service) Refund(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Appointment, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.refund(ctx, actor, a)
}

// RefundCancelled runs the refund as the system for a cancelled appointment.
func (s *Service) RefundCancelled(ctx context.Context, a *domain.Appointment) (*domain.Appointment, error) {
	refunded, err := s.refund(ctx, domain.SystemActor, a)
	if err != nil && domain.KindOf(err) == domain.KindGateway {
		s.events.Emit(ctx, domain.NewEvent(domain.EventPaymentRefundFailed, a), a.PatientID)
	}
	return refunded, err
}

// refund asks the gateway to reverse the payment and only then marks it
// REFUNDED. A gateway failure leaves the appointment PAID.
func (s *Service) refund(ctx context.Context, actor domain.Actor, a *domain.Appointment) (*domain.Appointment, error) {
	if !lifecycle.For(actor).CanRefund(a) {
		return nil, domain.Errorf(domain.ErrForbidden, "only the doctor or an administrator may refund")
	}
	if a.PaymentStatus != domain.PaymentPaid {
		return nil, domain.Errorf(domain.ErrNotPaid, "appointment payment is %s", a.PaymentStatus)
	}
	p, err := s.payments.GetPaidByAppointment(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.Refund(ctx, p.TransactionID, p.Amount, p.Currency); err != nil {
		return nil, err
	}

	updated, applied, err := s.payments.MarkRefunded(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.log.Info().
			Str("appointment_id", a.ID.String()).
			Str("payment_id", p.ID.String()).
			Str("from", string(domain.PaymentPaid)).
			Str("to", string(domain.PaymentRefunded)).
			Msg("payment refunded")
		s.events.Emit(ctx, domain.NewEvent(domain.EventPaymentRefunded, updated), updated.PatientID, updated.DoctorID)
	}
	return updated, nil
}

// ReconcilePending asks the gateway about pending payments older than the
// reconcile window and settles the paid ones. It returns how many settled.
func (s *Service) ReconcilePending(ctx context.Context) (int, error) {
	stale, err := s.payments.ListStalePending(ctx, s.now().Add(-s.reconcileAfter), s.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range stale {
		p := &stale[i]
		v, err := s.gateway.VerifySession(ctx, p.SessionRef)
		if err != nil {
			s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("reconcile verify failed")
			continue
		}
		if !v.Paid {
			continue
		}
		if _, err := s.settle(ctx, p, v.TransactionID); err != nil {
			s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("reconcile settle failed")
			continue
		}
		settled++
	}
	return settled, nil
}

// RetryRefunds refunds cancelled appointments that are still PAID and extra
// payments whose earlier refund failed.
func (s *Service) RetryRefunds(ctx context.Context) (int, error) {
	pending, err := s.appointments.ListCancelledPaid(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for i := range pending {
		if _, err := s.refund(ctx, domain.SystemActor, &pending[i]); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", pending[i].ID.String()).Msg("refund retry failed")
			continue
		}
		refunded++
	}

	surplus, err := s.payments.ListSurplusPaid(ctx, s.batchSize)
	if err != nil {
		return refunded, err
	}
	for i := range surplus {
		if err := s.refundSurplus(ctx, &surplus[i]); err != nil {
			s.log.Warn().Err(err).Str("payment_id", surplus[i].ID.String()).Msg("extra payment refund retry failed")
			continue
		}
		refunded++
	}
	return refunded, nil
}

var _ PaymentUseCase = (*Service)(nil)
