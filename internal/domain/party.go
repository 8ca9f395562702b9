package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
	// RoleSystem is used for transitions the engine initiates itself,
	// e.g. the refund that follows cancelling a paid appointment.
	RoleSystem Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the caller identity supplied by the identity provider.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor identifies engine-initiated work such as the refund after a
// paid appointment is cancelled and the worker's refund retries.
var SystemActor = Actor{Role: RoleSystem}

type Doctor struct {
	ID                uuid.UUID
	Name              string
	Email             string
	Active            bool
	ConsultationPrice decimal.Decimal
}

type Patient struct {
	ID    uuid.UUID
	Name  string
	Email string
}
