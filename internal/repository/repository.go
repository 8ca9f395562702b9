package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityRepository persists doctor availability windows. Create and
// Update reject overlapping windows atomically with domain.ErrWindowOverlap.
type AvailabilityRepository interface {
	Create(ctx context.Context, w *domain.Availability) error
	Update(ctx context.Context, w *domain.Availability) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Availability, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error)
}

// AppointmentRepository persists appointments. CreateRequested and Confirm run
// the conflict check and the write as one unit per doctor and fail with
// domain.ErrSlotUnavailable when another active appointment overlaps.
type AppointmentRepository interface {
	CreateRequested(ctx context.Context, a *domain.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]domain.Appointment, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, status domain.AppointmentStatus, limit int) ([]domain.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID, amount decimal.Decimal, currency string) (*domain.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, action lifecycle.Action, to domain.AppointmentStatus, reason string) (*domain.Appointment, error)
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	ListCancelledPaid(ctx context.Context, limit int) ([]domain.Appointment, error)
}

// Settlement reports what MarkPaid did with a payment.
type Settlement int

const (
	// SettleNoop: the payment was already settled by an earlier delivery.
	SettleNoop Settlement = iota
	// SettleApplied: the payment and its appointment are now PAID.
	SettleApplied
	// SettleSurplus: the payment is PAID but the appointment was already
	// settled by another payment, so it is left untouched.
	SettleSurplus
)

// PaymentRepository persists gateway payments. Mark* methods report whether
// this call performed the change so duplicate gateway deliveries are no-ops.
//
// CreatePending returns the existing row with created=false when the
// appointment already has a pending payment or the session ref is known.
// MarkPaid decides surplus against the appointment's payment status in the
// same unit as the write. MarkRefunded only moves the appointment to
// REFUNDED for a non-surplus payment.
type PaymentRepository interface {
	CreatePending(ctx context.Context, p *domain.Payment) (*domain.Payment, bool, error)
	GetPendingByAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error)
	GetPaidByAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error)
	GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error)
	MarkPaid(ctx context.Context, paymentID uuid.UUID, transactionID string) (*domain.Appointment, Settlement, error)
	MarkClosed(ctx context.Context, paymentID uuid.UUID, status domain.PaymentRecordStatus) (bool, error)
	CancelPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) error
	MarkRefunded(ctx context.Context, paymentID uuid.UUID) (*domain.Appointment, bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)
	ListSurplusPaid(ctx context.Context, limit int) ([]domain.Payment, error)
}

// DirectoryRepository reads doctor and patient profiles owned elsewhere.
type DirectoryRepository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*domain.Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*domain.Patient, error)
}

type Repositories struct {
	Availability AvailabilityRepository
	Appointments AppointmentRepository
	Payments     PaymentRepository
	Directory    DirectoryRepository
}
