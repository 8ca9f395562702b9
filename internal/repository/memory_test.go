package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppointment(doctorID uuid.UUID, start time.Time) *domain.Appointment {
	return &domain.Appointment{
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Start:     start,
		End:       start.Add(domain.SlotDuration),
	}
}

func TestMemoryAppointments_CreateRejectsOverlap(t *testing.T) {
	repos := NewMemoryStore().Repositories()
	ctx := context.Background()
	doctor := uuid.New()
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)

	first := newAppointment(doctor, start)
	require.NoError(t, repos.Appointments.CreateRequested(ctx, first))
	assert.Equal(t, domain.AppointmentRequested, first.Status)
	assert.Equal(t, domain.PaymentNone, first.PaymentStatus)

	err := repos.Appointments.CreateRequested(ctx, newAppointment(doctor, start.Add(15*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// adjacent slots touch but do not overlap
	require.NoError(t, repos.Appointments.CreateRequested(ctx, newAppointment(doctor, start.Add(30*time.Minute))))
	// another doctor is independent
	require.NoError(t, repos.Appointments.CreateRequested(ctx, newAppointment(uuid.New(), start)))
}

func TestMemoryAppointments_CancelledFreesSlot(t *testing.T) {
	repos := NewMemoryStore().Repositories()
	ctx := context.Background()
	doctor := uuid.New()
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)

	a := newAppointment(doctor, start)
	require.NoError(t, repos.Appointments.CreateRequested(ctx, a))
	_, err := repos.Appointments.Transition(ctx, a.ID, lifecycle.ActionCancel, domain.AppointmentCancelled, "patient request")
	require.NoError(t, err)

	require.NoError(t, repos.Appointments.CreateRequested(ctx, newAppointment(doctor, start)))
}

func TestMemoryAppointments_ConcurrentCreateSingleWinner(t *testing.T) {
	repos := NewMemoryStore().Repositories()
	ctx := context.Background()
	doctor := uuid.New()
	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)

	const attempts = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repos.Appointments.CreateRequested(ctx, newAppointment(doctor, start))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, domain.ErrSlotUnavailable) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, rejected)
}

func TestMemoryAppointments_TransitionGuard(t *testing.T) {
	repos := NewMemoryStore().Repositories()
	ctx := context.Background()
	a := newAppointment(uuid.New(), time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repos.Appointments.CreateRequested(ctx, a))

	_, err := repos.Appointments.Transition(ctx, a.ID, lifecycle.ActionComplete, domain.AppointmentCompleted, "")
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, domain.AppointmentRequested, illegal.From)

	confirmed, err := repos.Appointments.Confirm(ctx, a.ID, decimal.NewFromInt(50), "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentConfirmed, confirmed.Status)
	assert.Equal(t, domain.PaymentPending, confirmed.PaymentStatus)
	assert.True(t, decimal.NewFromInt(50).Equal(confirmed.Amount))

	_, err = repos.Appointments.Confirm(ctx, a.ID, decimal.NewFromInt(50), "USD")
	assert.ErrorAs(t, err, &illegal)

	_, err = repos.Appointments.Transition(ctx, uuid.New(), lifecycle.ActionCancel, domain.AppointmentCancelled, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryAvailability_RejectsOverlap(t *testing.T) {
	repos := NewMemoryStore().Repositories()
	ctx := context.Background()
	doctor := uuid.New()
	date := domain.Date{Year: 2030, Month: time.January, Day: 2}

	w := &domain.Availability{DoctorID: doctor, Date: date, StartTime: 9 * 60, EndTime: 12 * 60, IsAvailable: true}
	require.NoError(t, repos.Availability.Create(ctx, w))

	clash := &domain.Availability{DoctorID: doctor, Date: date, StartTime: 11 * 60, EndTime: 13 * 60, IsAvailable: true}
	assert.ErrorIs(t, repos.Availability.Create(ctx, clash), domain.ErrWindowOverlap)

	next := &domain.Availability{DoctorID: doctor, Date: date, StartTime: 12 * 60, EndTime: 13 * 60, IsAvailable: true}
	require.NoError(t, repos.Availability.Create(ctx, next))

	// updating a window against itself is not an overlap
	w.EndTime = 11 * 60
	require.NoError(t, repos.Availability.Update(ctx, w))

	list, err := repos.Availability.ListByDoctorDate(ctx, doctor, date)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.MinuteOfDay(9*60), list[0].StartTime)

	require.NoError(t, repos.Availability.Delete(ctx, w.ID))
	assert.ErrorIs(t, repos.Availability.Delete(ctx, w.ID), domain.ErrNotFound)
}

func TestMemoryPayments_SettlementIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	a := newAppointment(uuid.New(), time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repos.Appointments.CreateRequested(ctx, a))
	_, err := repos.Appointments.Confirm(ctx, a.ID, decimal.NewFromInt(80), "USD")
	require.NoError(t, err)

	p, created, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: a.ID, SessionRef: "sess-1", Amount: decimal.NewFromInt(80), Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: a.ID, SessionRef: "sess-2"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)

	paid, outcome, err := repos.Payments.MarkPaid(ctx, p.ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, SettleApplied, outcome)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)

	_, outcome, err = repos.Payments.MarkPaid(ctx, p.ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, SettleNoop, outcome)

	refunded, applied, err := repos.Payments.MarkRefunded(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.PaymentRefunded, refunded.PaymentStatus)

	_, applied, err = repos.Payments.MarkRefunded(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMemoryPayments_SecondPaymentIsSurplus(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	a := newAppointment(uuid.New(), time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repos.Appointments.CreateRequested(ctx, a))
	_, err := repos.Appointments.Confirm(ctx, a.ID, decimal.NewFromInt(80), "USD")
	require.NoError(t, err)

	first, _, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: a.ID, SessionRef: "sess-1"})
	require.NoError(t, err)
	_, err = repos.Payments.MarkClosed(ctx, first.ID, domain.PaymentRecordCancelled)
	require.NoError(t, err)
	second, created, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: a.ID, SessionRef: "sess-2"})
	require.NoError(t, err)
	require.True(t, created)

	_, outcome, err := repos.Payments.MarkPaid(ctx, second.ID, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, SettleApplied, outcome)

	current, outcome, err := repos.Payments.MarkPaid(ctx, first.ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, SettleSurplus, outcome)
	assert.Equal(t, domain.PaymentPaid, current.PaymentStatus)

	settling, err := repos.Payments.GetPaidByAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, settling.ID)

	surplus, err := repos.Payments.ListSurplusPaid(ctx, 10)
	require.NoError(t, err)
	require.Len(t, surplus, 1)
	assert.Equal(t, first.ID, surplus[0].ID)
	assert.Equal(t, "tx-1", surplus[0].TransactionID)

	current, applied, err := repos.Payments.MarkRefunded(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.PaymentPaid, current.PaymentStatus, "the settling payment still stands")

	surplus, err = repos.Payments.ListSurplusPaid(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, surplus)
}

func TestMemoryPayments_KnownSessionRefIsReturned(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()
	appointmentID := uuid.New()

	first, created, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: appointmentID, SessionRef: "sess-1"})
	require.NoError(t, err)
	require.True(t, created)
	_, err = repos.Payments.MarkClosed(ctx, first.ID, domain.PaymentRecordFailed)
	require.NoError(t, err)

	again, created, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: appointmentID, SessionRef: "sess-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	byRef, err := repos.Payments.GetByGatewayRef(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byRef.ID)
}

func TestMemoryPayments_ListStalePending(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return base })
	repos := store.Repositories()
	ctx := context.Background()

	_, _, err := repos.Payments.CreatePending(ctx, &domain.Payment{AppointmentID: uuid.New(), SessionRef: "old"})
	require.NoError(t, err)

	stale, err := repos.Payments.ListStalePending(ctx, base.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	stale, err = repos.Payments.ListStalePending(ctx, base, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
