// Package lifecycle holds the appointment state machine and the role
// capabilities that guard each transition.
package lifecycle

import (
	"github.com/Domenick1991/medbooking/internal/domain"
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

var transitions = map[domain.AppointmentStatus]map[Action]domain.AppointmentStatus{
	domain.AppointmentRequested: {
		ActionConfirm: domain.AppointmentConfirmed,
		ActionCancel:  domain.AppointmentCancelled,
	},
	domain.AppointmentConfirmed: {
		ActionComplete: domain.AppointmentCompleted,
		ActionCancel:   domain.AppointmentCancelled,
	},
}

// Next returns the state reached by applying action to from, or an
// *domain.IllegalTransitionError.
func Next(from domain.AppointmentStatus, action Action) (domain.AppointmentStatus, error) {
	to, ok := transitions[from][action]
	if !ok {
		return from, &domain.IllegalTransitionError{From: from, Action: string(action)}
	}
	return to, nil
}

// SourceStates lists the states from which action is legal.
func SourceStates(action Action) []domain.AppointmentStatus {
	var out []domain.AppointmentStatus
	for _, from := range []domain.AppointmentStatus{domain.AppointmentRequested, domain.AppointmentConfirmed} {
		if _, ok := transitions[from][action]; ok {
			out = append(out, from)
		}
	}
	return out
}
