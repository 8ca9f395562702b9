package repository

import (
	"context"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PGDirectoryRepository struct {
	db *pgxpool.Pool
}

func NewDirectoryRepository(db *pgxpool.Pool) DirectoryRepository {
	return &PGDirectoryRepository{db: db}
}

func (r *PGDirectoryRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*domain.Doctor, error) {
	var (
		d     domain.Doctor
		price *string
	)
	err := r.db.QueryRow(ctx, `SELECT id, name, email, active, consultation_price::text FROM doctors WHERE id=$1`, id).
		Scan(&d.ID, &d.Name, &d.Email, &d.Active, &price)
	if err != nil {
		return nil, notFound(err, "doctor", id)
	}
	if price != nil {
		if d.ConsultationPrice, err = decimal.NewFromString(*price); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (r *PGDirectoryRepository) GetPatient(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	var p domain.Patient
	err := r.db.QueryRow(ctx, `SELECT id, name, email FROM patients WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if err != nil {
		return nil, notFound(err, "patient", id)
	}
	return &p, nil
}

var _ DirectoryRepository = (*PGDirectoryRepository)(nil)
