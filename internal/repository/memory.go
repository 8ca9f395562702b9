package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps every table behind one mutex so each check-then-write
// runs as a single critical section. It backs the memory storage driver and
// the service tests.
type MemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	doctors      map[uuid.UUID]domain.Doctor
	patients     map[uuid.UUID]domain.Patient
	availability map[uuid.UUID]domain.Availability
	appointments map[uuid.UUID]domain.Appointment
	payments     map[uuid.UUID]domain.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		doctors:      make(map[uuid.UUID]domain.Doctor),
		patients:     make(map[uuid.UUID]domain.Patient),
		availability: make(map[uuid.UUID]domain.Availability),
		appointments: make(map[uuid.UUID]domain.Appointment),
		payments:     make(map[uuid.UUID]domain.Payment),
	}
}

// SetClock replaces the clock used for created_at and updated_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Availability: &memAvailability{s},
		Appointments: &memAppointments{s},
		Payments:     &memPayments{s},
		Directory:    &memDirectory{s},
	}
}

func (s *MemoryStore) AddDoctor(d domain.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
}

func (s *MemoryStore) AddPatient(p domain.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

type memDirectory struct{ s *MemoryStore }

func (r *memDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*domain.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "doctor %s", id)
	}
	return &d, nil
}

func (r *memDirectory) GetPatient(_ context.Context, id uuid.UUID) (*domain.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "patient %s", id)
	}
	return &p, nil
}

type memAvailability struct{ s *MemoryStore }

func (r *memAvailability) overlapsLocked(w *domain.Availability) bool {
	for _, other := range r.s.availability {
		if other.ID != w.ID && other.DoctorID == w.DoctorID && other.Overlaps(w) {
			return true
		}
	}
	return false
}

func (r *memAvailability) Create(_ context.Context, w *domain.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if r.overlapsLocked(w) {
		return domain.ErrWindowOverlap
	}
	w.CreatedAt = r.s.now()
	w.UpdatedAt = w.CreatedAt
	r.s.availability[w.ID] = *w
	return nil
}

func (r *memAvailability) Update(_ context.Context, w *domain.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.availability[w.ID]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "availability %s", w.ID)
	}
	if r.overlapsLocked(w) {
		return domain.ErrWindowOverlap
	}
	w.CreatedAt = current.CreatedAt
	w.UpdatedAt = r.s.now()
	r.s.availability[w.ID] = *w
	return nil
}

func (r *memAvailability) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.availability[id]; !ok {
		return domain.Errorf(domain.ErrNotFound, "availability %s", id)
	}
	delete(r.s.availability, id)
	return nil
}

func (r *memAvailability) GetByID(_ context.Context, id uuid.UUID) (*domain.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.availability[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "availability %s", id)
	}
	return &w, nil
}

func (r *memAvailability) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := lo.Filter(lo.Values(r.s.availability), func(w domain.Availability, _ int) bool {
		return w.DoctorID == doctorID && w.Date == date
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

type memAppointments struct{ s *MemoryStore }

func (r *memAppointments) slotTakenLocked(doctorID, self uuid.UUID, start, end time.Time) bool {
	for _, a := range r.s.appointments {
		if a.ID != self && a.DoctorID == doctorID && a.Status.Active() && a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r *memAppointments) CreateRequested(_ context.Context, a *domain.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.slotTakenLocked(a.DoctorID, uuid.Nil, a.Start, a.End) {
		return domain.Errorf(domain.ErrSlotUnavailable, "doctor %s at %s", a.DoctorID, a.Start.Format(time.RFC3339))
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = domain.AppointmentRequested
	a.PaymentStatus = domain.PaymentNone
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *memAppointments) GetByID(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "appointment %s", id)
	}
	return &a, nil
}

func (r *memAppointments) list(keep func(a domain.Appointment) bool) []domain.Appointment {
	out := lo.Filter(lo.Values(r.s.appointments), func(a domain.Appointment, _ int) bool { return keep(a) })
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (r *memAppointments) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(a domain.Appointment) bool {
		return a.DoctorID == doctorID && a.Status.Active() && a.Overlaps(from, to)
	}), nil
}

func (r *memAppointments) ListByParticipant(_ context.Context, userID uuid.UUID, status domain.AppointmentStatus, limit int) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.list(func(a domain.Appointment) bool {
		return a.Participant(userID) && (status == "" || a.Status == status)
	})
	out = lo.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAppointments) Confirm(_ context.Context, id uuid.UUID, amount decimal.Decimal, currency string) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "appointment %s", id)
	}
	to, err := lifecycle.Next(a.Status, lifecycle.ActionConfirm)
	if err != nil {
		return nil, err
	}
	if r.slotTakenLocked(a.DoctorID, a.ID, a.Start, a.End) {
		return nil, domain.Errorf(domain.ErrSlotUnavailable, "doctor %s at %s", a.DoctorID, a.Start.Format(time.RFC3339))
	}
	a.Status = to
	a.PaymentStatus = domain.PaymentPending
	a.Amount = amount
	a.Currency = currency
	a.UpdatedAt = r.s.now()
	r.s.appointments[id] = a
	return &a, nil
}

func (r *memAppointments) Transition(_ context.Context, id uuid.UUID, action lifecycle.Action, to domain.AppointmentStatus, reason string) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "appointment %s", id)
	}
	if !lo.Contains(lifecycle.SourceStates(action), a.Status) {
		return nil, &domain.IllegalTransitionError{From: a.Status, Action: string(action)}
	}
	a.Status = to
	if reason != "" {
		a.CancelReason = reason
	}
	a.UpdatedAt = r.s.now()
	r.s.appointments[id] = a
	return &a, nil
}

func (r *memAppointments) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(a domain.Appointment) bool {
		return a.Status == domain.AppointmentConfirmed && !a.Start.Before(from) && a.Start.Before(to)
	}), nil
}

func (r *memAppointments) ListCancelledPaid(_ context.Context, limit int) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.list(func(a domain.Appointment) bool {
		return a.Status == domain.AppointmentCancelled && a.PaymentStatus == domain.PaymentPaid
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPayments struct{ s *MemoryStore }

func (r *memPayments) findLocked(keep func(p domain.Payment) bool) (domain.Payment, bool) {
	return lo.Find(lo.Values(r.s.payments), keep)
}

func (r *memPayments) CreatePending(_ context.Context, p *domain.Payment) (*domain.Payment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.findLocked(func(x domain.Payment) bool {
		return x.AppointmentID == p.AppointmentID && x.Status == domain.PaymentRecordPending
	}); ok {
		return &existing, false, nil
	}
	if existing, ok := r.findLocked(func(x domain.Payment) bool { return x.SessionRef == p.SessionRef }); ok {
		return &existing, false, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = domain.PaymentRecordPending
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	r.s.payments[p.ID] = *p
	created := *p
	return &created, true, nil
}

func (r *memPayments) getBy(keep func(p domain.Payment) bool, what string, id any) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.findLocked(keep)
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "%s %v", what, id)
	}
	return &p, nil
}

func (r *memPayments) GetPendingByAppointment(_ context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	return r.getBy(func(p domain.Payment) bool {
		return p.AppointmentID == appointmentID && p.Status == domain.PaymentRecordPending
	}, "pending payment for appointment", appointmentID)
}

func (r *memPayments) GetPaidByAppointment(_ context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	return r.getBy(func(p domain.Payment) bool {
		return p.AppointmentID == appointmentID && p.Status == domain.PaymentRecordPaid && !p.Surplus
	}, "paid payment for appointment", appointmentID)
}

func (r *memPayments) GetByGatewayRef(_ context.Context, ref string) (*domain.Payment, error) {
	return r.getBy(func(p domain.Payment) bool { return p.SessionRef == ref }, "payment with session", ref)
}

func (r *memPayments) lookupLocked(paymentID uuid.UUID) (domain.Payment, domain.Appointment, error) {
	p, ok := r.s.payments[paymentID]
	if !ok {
		return domain.Payment{}, domain.Appointment{}, domain.Errorf(domain.ErrNotFound, "payment %s", paymentID)
	}
	a, ok := r.s.appointments[p.AppointmentID]
	if !ok {
		return domain.Payment{}, domain.Appointment{}, domain.Errorf(domain.ErrNotFound, "appointment %s", p.AppointmentID)
	}
	return p, a, nil
}

func (r *memPayments) MarkPaid(_ context.Context, paymentID uuid.UUID, transactionID string) (*domain.Appointment, Settlement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, a, err := r.lookupLocked(paymentID)
	if err != nil {
		return nil, SettleNoop, err
	}
	switch p.Status {
	case domain.PaymentRecordPending, domain.PaymentRecordFailed, domain.PaymentRecordCancelled:
	default:
		return &a, SettleNoop, nil
	}

	now := r.s.now()
	p.Status = domain.PaymentRecordPaid
	p.TransactionID = transactionID
	p.UpdatedAt = now
	if a.PaymentStatus != domain.PaymentPending {
		p.Surplus = true
		r.s.payments[p.ID] = p
		return &a, SettleSurplus, nil
	}
	r.s.payments[p.ID] = p

	a.PaymentStatus = domain.PaymentPaid
	a.UpdatedAt = now
	r.s.appointments[a.ID] = a
	return &a, SettleApplied, nil
}

func (r *memPayments) MarkRefunded(_ context.Context, paymentID uuid.UUID) (*domain.Appointment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, a, err := r.lookupLocked(paymentID)
	if err != nil {
		return nil, false, err
	}
	if p.Status != domain.PaymentRecordPaid {
		return &a, false, nil
	}

	now := r.s.now()
	p.Status = domain.PaymentRecordRefunded
	p.UpdatedAt = now
	r.s.payments[p.ID] = p
	if !p.Surplus {
		a.PaymentStatus = domain.PaymentRefunded
		a.UpdatedAt = now
		r.s.appointments[a.ID] = a
	}
	return &a, true, nil
}

func (r *memPayments) MarkClosed(_ context.Context, paymentID uuid.UUID, status domain.PaymentRecordStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return false, domain.Errorf(domain.ErrNotFound, "payment %s", paymentID)
	}
	if p.Status != domain.PaymentRecordPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = r.s.now()
	r.s.payments[p.ID] = p
	return true, nil
}

func (r *memPayments) CancelPendingForAppointment(_ context.Context, appointmentID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.payments {
		if p.AppointmentID == appointmentID && p.Status == domain.PaymentRecordPending {
			p.Status = domain.PaymentRecordCancelled
			p.UpdatedAt = r.s.now()
			r.s.payments[id] = p
		}
	}
	return nil
}

func (r *memPayments) ListStalePending(_ context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := lo.Filter(lo.Values(r.s.payments), func(p domain.Payment, _ int) bool {
		return p.Status == domain.PaymentRecordPending && p.CreatedAt.Before(before)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPayments) ListSurplusPaid(_ context.Context, limit int) ([]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := lo.Filter(lo.Values(r.s.payments), func(p domain.Payment, _ int) bool {
		return p.Status == domain.PaymentRecordPaid && p.Surplus
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ AvailabilityRepository = (*memAvailability)(nil)
	_ AppointmentRepository  = (*memAppointments)(nil)
	_ PaymentRepository      = (*memPayments)(nil)
	_ DirectoryRepository    = (*memDirectory)(nil)
)
