package lifecycle

import (
	"github.com/Domenick1991/medbooking/internal/domain"
)

// Capability answers whether an actor may drive a given appointment.
type Capability interface {
	CanView(a *domain.Appointment) bool
	CanConfirm(a *domain.Appointment) bool
	CanCancel(a *domain.Appointment) bool
	CanComplete(a *domain.Appointment) bool
	CanRefund(a *domain.Appointment) bool
	CanPay(a *domain.Appointment) bool
}

// For returns the capability set of actor.
func For(actor domain.Actor) Capability {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
		return privileged{}
	case domain.RoleDoctor:
		return doctor{actor: actor}
	case domain.RolePatient:
		return patient{actor: actor}
	default:
		return none{}
	}
}

type privileged struct{}

func (privileged) CanView(*domain.Appointment) bool     { return true }
func (privileged) CanConfirm(*domain.Appointment) bool  { return false }
func (privileged) CanCancel(*domain.Appointment) bool   { return true }
func (privileged) CanComplete(*domain.Appointment) bool { return true }
func (privileged) CanRefund(*domain.Appointment) bool   { return true }
func (privileged) CanPay(*domain.Appointment) bool      { return true }

type doctor struct{ actor domain.Actor }

func (d doctor) owns(a *domain.Appointment) bool { return a.DoctorID == d.actor.ID }

func (d doctor) CanView(a *domain.Appointment) bool     { return d.owns(a) }
func (d doctor) CanConfirm(a *domain.Appointment) bool  { return d.owns(a) }
func (d doctor) CanCancel(a *domain.Appointment) bool   { return d.owns(a) }
func (d doctor) CanComplete(a *domain.Appointment) bool { return d.owns(a) }
func (d doctor) CanRefund(a *domain.Appointment) bool   { return d.owns(a) }
func (d doctor) CanPay(*domain.Appointment) bool        { return false }

type patient struct{ actor domain.Actor }

func (p patient) owns(a *domain.Appointment) bool { return a.PatientID == p.actor.ID }

func (p patient) CanView(a *domain.Appointment) bool   { return p.owns(a) }
func (patient) CanConfirm(*domain.Appointment) bool    { return false }
func (p patient) CanCancel(a *domain.Appointment) bool { return p.owns(a) }
func (patient) CanComplete(*domain.Appointment) bool   { return false }
func (patient) CanRefund(*domain.Appointment) bool     { return false }
func (p patient) CanPay(a *domain.Appointment) bool    { return p.owns(a) }

type none struct{}

func (none) CanView(*domain.Appointment) bool     { return false }
func (none) CanConfirm(*domain.Appointment) bool  { return false }
func (none) CanCancel(*domain.Appointment) bool   { return false }
func (none) CanComplete(*domain.Appointment) bool { return false }
func (none) CanRefund(*domain.Appointment) bool   { return false }
func (none) CanPay(*domain.Appointment) bool      { return false }
