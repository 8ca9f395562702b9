package api

import (
	"context"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/service/appointments"
	"github.com/Domenick1991/medbooking/internal/service/availability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockAvailabilityUseCase struct {
	mock.Mock
}

func (m *MockAvailabilityUseCase) Create(ctx context.Context, actor domain.Actor, input availability.WindowInput) (*domain.Availability, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Availability), args.Error(1)
}

func (m *MockAvailabilityUseCase) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input availability.WindowInput) (*domain.Availability, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Availability), args.Error(1)
}

func (m *MockAvailabilityUseCase) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockAvailabilityUseCase) List(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error) {
	args := m.Called(ctx, doctorID, date)
	return args.Get(0).([]domain.Availability), args.Error(1)
}

type MockSlotUseCase struct {
	mock.Mock
}

func (m *MockSlotUseCase) GenerateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	args := m.Called(ctx, doctorID, date)
	return args.Get(0).([]domain.Slot), args.Error(1)
}

type MockAppointmentUseCase struct {
	mock.Mock
}

func (m *MockAppointmentUseCase) appointment(args mock.Arguments) (*domain.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

func (m *MockAppointmentUseCase) Book(ctx context.Context, actor domain.Actor, input appointments.BookInput) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, actor, input))
}

func (m *MockAppointmentUseCase) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, actor, id))
}

func (m *MockAppointmentUseCase) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, actor, id, reason))
}

func (m *MockAppointmentUseCase) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, actor, id))
}

func (m *MockAppointmentUseCase) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Appointment, error) {
	return m.appointment(m.Called(ctx, actor, id))
}

func (m *MockAppointmentUseCase) ListMine(ctx context.Context, actor domain.Actor, status domain.AppointmentStatus) ([]domain.Appointment, error) {
	args := m.Called(ctx, actor, status)
	return args.Get(0).([]domain.Appointment), args.Error(1)
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) CreateSession(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, actor, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentUseCase) OnGatewayConfirmed(ctx context.Context, sessionRef string) (*domain.Appointment, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

func (m *MockPaymentUseCase) OnGatewayClosed(ctx context.Context, sessionRef string, status domain.PaymentRecordStatus) error {
	args := m.Called(ctx, sessionRef, status)
	return args.Error(0)
}

func (m *MockPaymentUseCase) Refund(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*domain.Appointment, error) {
	args := m.Called(ctx, actor, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}
