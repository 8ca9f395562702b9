package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGAvailabilityRepository struct {
	db *pgxpool.Pool
}

func NewAvailabilityRepository(db *pgxpool.Pool) AvailabilityRepository {
	return &PGAvailabilityRepository{db: db}
}

const availabilityCols = `id, doctor_id, day, start_minute, end_minute, is_available, created_at, updated_at`

func scanAvailability(row pgx.Row) (*domain.Availability, error) {
	var (
		w          domain.Availability
		day        time.Time
		start, end int
	)
	if err := row.Scan(&w.ID, &w.DoctorID, &day, &start, &end, &w.IsAvailable, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Date = domain.DateOf(day)
	w.StartTime = domain.MinuteOfDay(start)
	w.EndTime = domain.MinuteOfDay(end)
	return &w, nil
}

func (r *PGAvailabilityRepository) Create(ctx context.Context, w *domain.Availability) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := advisoryLock(ctx, tx, "availability", w.DoctorID); err != nil {
		return err
	}
	if err := checkWindowOverlap(ctx, tx, w); err != nil {
		return err
	}

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if err := tx.QueryRow(ctx, `INSERT INTO availability (id, doctor_id, day, start_minute, end_minute, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		w.ID, w.DoctorID, w.Date.Time(), int(w.StartTime), int(w.EndTime), w.IsAvailable).
		Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGAvailabilityRepository) Update(ctx context.Context, w *domain.Availability) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := advisoryLock(ctx, tx, "availability", w.DoctorID); err != nil {
		return err
	}
	if err := checkWindowOverlap(ctx, tx, w); err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, `UPDATE availability
		SET day=$2, start_minute=$3, end_minute=$4, is_available=$5, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		w.ID, w.Date.Time(), int(w.StartTime), int(w.EndTime), w.IsAvailable).
		Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
		return notFound(err, "availability", w.ID)
	}

	return tx.Commit(ctx)
}

func checkWindowOverlap(ctx context.Context, tx pgx.Tx, w *domain.Availability) error {
	var clash uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM availability
		WHERE doctor_id=$1 AND day=$2 AND id <> $3 AND start_minute < $5 AND end_minute > $4
		LIMIT 1`,
		w.DoctorID, w.Date.Time(), w.ID, int(w.StartTime), int(w.EndTime)).Scan(&clash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return err
	default:
		return domain.Errorf(domain.ErrWindowOverlap, "overlaps window %s", clash)
	}
}

func (r *PGAvailabilityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM availability WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.Errorf(domain.ErrNotFound, "availability %s", id)
	}
	return nil
}

func (r *PGAvailabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Availability, error) {
	w, err := scanAvailability(r.db.QueryRow(ctx, `SELECT `+availabilityCols+` FROM availability WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, "availability", id)
	}
	return w, nil
}

func (r *PGAvailabilityRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Availability, error) {
	rows, err := r.db.Query(ctx, `SELECT `+availabilityCols+` FROM availability
		WHERE doctor_id=$1 AND day=$2 ORDER BY start_minute`, doctorID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make([]domain.Availability, 0)
	for rows.Next() {
		w, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *w)
	}
	return windows, rows.Err()
}

var _ AvailabilityRepository = (*PGAvailabilityRepository)(nil)
