package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// NewPGRepositories wires every repository onto one pool.
func NewPGRepositories(db *pgxpool.Pool) Repositories {
	return Repositories{
		Availability: NewAvailabilityRepository(db),
		Appointments: NewAppointmentRepository(db),
		Payments:     NewPaymentRepository(db),
		Directory:    NewDirectoryRepository(db),
	}
}

// advisoryLock serialises writers of scope for lockKey (a doctor or an
// appointment id) until the transaction ends.
func advisoryLock(ctx context.Context, tx pgx.Tx, scope string, lockKey uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, scope+":"+lockKey.String())
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", scope, lockKey, err)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation || pgErr.Code == pgExclusionViolation
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Errorf(domain.ErrNotFound, "%s %v", what, id)
	}
	return err
}

// prefixed qualifies every column of a cols list with a table alias.
func prefixed(alias, cols string) string {
	return strings.Join(lo.Map(strings.Split(cols, ", "), func(c string, _ int) string {
		return alias + "." + c
	}), ", ")
}
