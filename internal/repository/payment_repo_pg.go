package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

const paymentCols = `id, appointment_id, session_ref, checkout_url, transaction_id, status, amount::text, currency, surplus, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p      domain.Payment
		amount string
	)
	if err := row.Scan(&p.ID, &p.AppointmentID, &p.SessionRef, &p.CheckoutURL, &p.TransactionID, &p.Status,
		&amount, &p.Currency, &p.Surplus, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = d
	return &p, nil
}

// CreatePending stores p unless the appointment already has a pending
// payment or the gateway handed out p.SessionRef before, in which case the
// existing row is returned with created=false.
func (r *PGPaymentRepository) CreatePending(ctx context.Context, p *domain.Payment) (*domain.Payment, bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	if err := advisoryLock(ctx, tx, "payments", p.AppointmentID); err != nil {
		return nil, false, err
	}
	existing, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE session_ref=$2 OR (appointment_id=$1 AND status='PENDING')
		ORDER BY status='PENDING' DESC
		LIMIT 1`, p.AppointmentID, p.SessionRef))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = domain.PaymentRecordPending
	created, err := scanPayment(tx.QueryRow(ctx, `INSERT INTO payments (id, appointment_id, session_ref, checkout_url, status, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING `+paymentCols,
		p.ID, p.AppointmentID, p.SessionRef, p.CheckoutURL, string(p.Status), p.Amount.String(), p.Currency))
	if err != nil {
		if isUniqueViolation(err) {
			// Another appointment's writer stored the same session ref first.
			_ = tx.Rollback(ctx)
			existing, lookupErr := r.GetByGatewayRef(ctx, p.SessionRef)
			if lookupErr != nil {
				return nil, false, domain.Errorf(domain.ErrDuplicateSession, "%s", p.SessionRef)
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *PGPaymentRepository) GetPendingByAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE appointment_id=$1 AND status='PENDING'`, appointmentID))
	if err != nil {
		return nil, notFound(err, "pending payment for appointment", appointmentID)
	}
	return p, nil
}

func (r *PGPaymentRepository) GetPaidByAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE appointment_id=$1 AND status='PAID' AND NOT surplus`, appointmentID))
	if err != nil {
		return nil, notFound(err, "paid payment for appointment", appointmentID)
	}
	return p, nil
}

func (r *PGPaymentRepository) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE session_ref=$1`, ref))
	if err != nil {
		return nil, notFound(err, "payment with session", ref)
	}
	return p, nil
}

func (r *PGPaymentRepository) MarkPaid(ctx context.Context, paymentID uuid.UUID, transactionID string) (*domain.Appointment, Settlement, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, SettleNoop, err
	}
	defer tx.Rollback(ctx)

	var (
		appointmentID uuid.UUID
		paymentStatus string
	)
	err = tx.QueryRow(ctx, `SELECT a.id, a.payment_status
		FROM appointments a JOIN payments p ON p.appointment_id = a.id
		WHERE p.id=$1
		FOR UPDATE OF a`, paymentID).Scan(&appointmentID, &paymentStatus)
	if err != nil {
		return nil, SettleNoop, notFound(err, "payment", paymentID)
	}
	surplus := domain.PaymentStatus(paymentStatus) != domain.PaymentPending

	cmd, err := tx.Exec(ctx, `UPDATE payments SET status='PAID', transaction_id=$2, surplus=$3, updated_at=now()
		WHERE id=$1 AND status IN ('PENDING', 'FAILED', 'CANCELLED')`, paymentID, transactionID, surplus)
	if err != nil {
		return nil, SettleNoop, err
	}
	if cmd.RowsAffected() == 0 {
		a, err := r.appointmentOfPayment(ctx, tx, paymentID)
		return a, SettleNoop, err
	}

	if surplus {
		a, err := r.appointmentOfPayment(ctx, tx, paymentID)
		if err != nil {
			return nil, SettleNoop, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, SettleNoop, err
		}
		return a, SettleSurplus, nil
	}

	a, err := scanAppointment(tx.QueryRow(ctx, `UPDATE appointments SET payment_status='PAID', updated_at=now()
		WHERE id=$1 RETURNING `+appointmentCols, appointmentID))
	if err != nil {
		return nil, SettleNoop, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, SettleNoop, err
	}
	return a, SettleApplied, nil
}

func (r *PGPaymentRepository) MarkClosed(ctx context.Context, paymentID uuid.UUID, status domain.PaymentRecordStatus) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now()
		WHERE id=$1 AND status='PENDING'`, paymentID, string(status))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGPaymentRepository) CancelPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE payments SET status='CANCELLED', updated_at=now()
		WHERE appointment_id=$1 AND status='PENDING'`, appointmentID)
	return err
}

func (r *PGPaymentRepository) MarkRefunded(ctx context.Context, paymentID uuid.UUID) (*domain.Appointment, bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var (
		appointmentID uuid.UUID
		surplus       bool
	)
	err = tx.QueryRow(ctx, `UPDATE payments SET status='REFUNDED', updated_at=now()
		WHERE id=$1 AND status='PAID'
		RETURNING appointment_id, surplus`, paymentID).Scan(&appointmentID, &surplus)
	if errors.Is(err, pgx.ErrNoRows) {
		a, err := r.appointmentOfPayment(ctx, tx, paymentID)
		return a, false, err
	}
	if err != nil {
		return nil, false, err
	}

	var a *domain.Appointment
	if surplus {
		a, err = r.appointmentOfPayment(ctx, tx, paymentID)
	} else {
		a, err = scanAppointment(tx.QueryRow(ctx, `UPDATE appointments SET payment_status='REFUNDED', updated_at=now()
			WHERE id=$1 RETURNING `+appointmentCols, appointmentID))
	}
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (r *PGPaymentRepository) appointmentOfPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (*domain.Appointment, error) {
	a, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+prefixed("a", appointmentCols)+`
		FROM appointments a JOIN payments p ON p.appointment_id = a.id
		WHERE p.id=$1`, paymentID))
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	return a, nil
}

func (r *PGPaymentRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE status='PENDING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, before, limit)
}

func (r *PGPaymentRepository) ListSurplusPaid(ctx context.Context, limit int) ([]domain.Payment, error) {
	return r.list(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE status='PAID' AND surplus
		ORDER BY updated_at
		LIMIT $1`, limit)
}

func (r *PGPaymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
