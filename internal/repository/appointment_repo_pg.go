package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type PGAppointmentRepository struct {
	db *pgxpool.Pool
}

func NewAppointmentRepository(db *pgxpool.Pool) AppointmentRepository {
	return &PGAppointmentRepository{db: db}
}

const appointmentCols = `id, doctor_id, patient_id, start_at, end_at, status, payment_status, amount::text, currency, cancel_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var (
		a      domain.Appointment
		amount string
	)
	if err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.Start, &a.End, &a.Status, &a.PaymentStatus,
		&amount, &a.Currency, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	a.Amount = d
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	defer rows.Close()
	out := make([]domain.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *PGAppointmentRepository) CreateRequested(ctx context.Context, a *domain.Appointment) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := advisoryLock(ctx, tx, "appointments", a.DoctorID); err != nil {
		return err
	}
	if err := checkSlotFree(ctx, tx, a.DoctorID, uuid.Nil, a.Start, a.End); err != nil {
		return err
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = domain.AppointmentRequested
	a.PaymentStatus = domain.PaymentNone
	err = tx.QueryRow(ctx, `INSERT INTO appointments (id, doctor_id, patient_id, start_at, end_at, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.Start, a.End, string(a.Status), string(a.PaymentStatus)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.Errorf(domain.ErrSlotUnavailable, "doctor %s at %s", a.DoctorID, a.Start.Format(time.RFC3339))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isConstraintViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return err
	}
	return nil
}

// checkSlotFree looks for another active appointment of the doctor that
// overlaps [start, end). self is ignored so a row can re-check its own slot.
func checkSlotFree(ctx context.Context, tx pgx.Tx, doctorID, self uuid.UUID, start, end time.Time) error {
	var clash uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM appointments
		WHERE doctor_id=$1 AND id <> $2 AND status IN ('REQUESTED', 'CONFIRMED')
		AND start_at < $4 AND end_at > $3
		LIMIT 1`, doctorID, self, start, end).Scan(&clash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return err
	default:
		return domain.Errorf(domain.ErrSlotUnavailable, "doctor %s at %s", doctorID, start.Format(time.RFC3339))
	}
}

func (r *PGAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	return a, nil
}

func (r *PGAppointmentRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentCols+` FROM appointments
		WHERE doctor_id=$1 AND status IN ('REQUESTED', 'CONFIRMED') AND start_at < $3 AND end_at > $2
		ORDER BY start_at`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PGAppointmentRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, status domain.AppointmentStatus, limit int) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentCols+` FROM appointments
		WHERE (doctor_id=$1 OR patient_id=$1) AND ($2::text = '' OR status = $2::text)
		ORDER BY start_at DESC
		LIMIT $3`, userID, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PGAppointmentRepository) Confirm(ctx context.Context, id uuid.UUID, amount decimal.Decimal, currency string) (*domain.Appointment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	if err := advisoryLock(ctx, tx, "appointments", current.DoctorID); err != nil {
		return nil, err
	}
	current, err = scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	if _, err := lifecycle.Next(current.Status, lifecycle.ActionConfirm); err != nil {
		return nil, err
	}
	if err := checkSlotFree(ctx, tx, current.DoctorID, current.ID, current.Start, current.End); err != nil {
		return nil, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `UPDATE appointments
		SET status=$2, payment_status=$3, amount=$4::numeric, currency=$5, updated_at=now()
		WHERE id=$1
		RETURNING `+appointmentCols,
		id, string(domain.AppointmentConfirmed), string(domain.PaymentPending), amount.String(), currency))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PGAppointmentRepository) Transition(ctx context.Context, id uuid.UUID, action lifecycle.Action, to domain.AppointmentStatus, reason string) (*domain.Appointment, error) {
	from := lo.Map(lifecycle.SourceStates(action), func(s domain.AppointmentStatus, _ int) string { return string(s) })

	updated, err := scanAppointment(r.db.QueryRow(ctx, `UPDATE appointments
		SET status=$2, cancel_reason=CASE WHEN $3::text = '' THEN cancel_reason ELSE $3::text END, updated_at=now()
		WHERE id=$1 AND status = ANY($4)
		RETURNING `+appointmentCols,
		id, string(to), reason, from))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &domain.IllegalTransitionError{From: current.Status, Action: string(action)}
}

func (r *PGAppointmentRepository) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentCols+` FROM appointments
		WHERE status='CONFIRMED' AND start_at >= $1 AND start_at < $2
		ORDER BY start_at`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PGAppointmentRepository) ListCancelledPaid(ctx context.Context, limit int) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentCols+` FROM appointments
		WHERE status='CANCELLED' AND payment_status='PAID'
		ORDER BY updated_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

var _ AppointmentRepository = (*PGAppointmentRepository)(nil)
