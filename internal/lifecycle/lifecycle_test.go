package lifecycle

import (
	"errors"
	"testing"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_LegalTransitions(t *testing.T) {
	testCases := []struct {
		from   domain.AppointmentStatus
		action Action
		want   domain.AppointmentStatus
	}{
		{domain.AppointmentRequested, ActionConfirm, domain.AppointmentConfirmed},
		{domain.AppointmentRequested, ActionCancel, domain.AppointmentCancelled},
		{domain.AppointmentConfirmed, ActionComplete, domain.AppointmentCompleted},
		{domain.AppointmentConfirmed, ActionCancel, domain.AppointmentCancelled},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"_"+string(tc.action), func(t *testing.T) {
			got, err := Next(tc.from, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNext_TerminalStatesAreClosed(t *testing.T) {
	for _, from := range []domain.AppointmentStatus{domain.AppointmentCancelled, domain.AppointmentCompleted} {
		for _, action := range []Action{ActionConfirm, ActionCancel, ActionComplete} {
			got, err := Next(from, action)

			var terr *domain.IllegalTransitionError
			require.True(t, errors.As(err, &terr), "%s -> %s", from, action)
			assert.Equal(t, from, terr.From)
			assert.Equal(t, string(action), terr.Action)
			assert.Equal(t, from, got)
		}
	}
}

func TestNext_IllegalFromLiveStates(t *testing.T) {
	_, err := Next(domain.AppointmentRequested, ActionComplete)
	assert.Equal(t, domain.KindIllegalTransition, domain.KindOf(err))

	_, err = Next(domain.AppointmentConfirmed, ActionConfirm)
	assert.Equal(t, domain.KindIllegalTransition, domain.KindOf(err))
}

func TestSourceStates(t *testing.T) {
	assert.Equal(t, []domain.AppointmentStatus{domain.AppointmentRequested}, SourceStates(ActionConfirm))
	assert.Equal(t, []domain.AppointmentStatus{domain.AppointmentConfirmed}, SourceStates(ActionComplete))
	assert.Equal(t, []domain.AppointmentStatus{domain.AppointmentRequested, domain.AppointmentConfirmed}, SourceStates(ActionCancel))
}

func TestFor_Capabilities(t *testing.T) {
	doctorID, patientID, strangerID := uuid.New(), uuid.New(), uuid.New()
	appt := &domain.Appointment{DoctorID: doctorID, PatientID: patientID}

	doc := For(domain.Actor{ID: doctorID, Role: domain.RoleDoctor})
	assert.True(t, doc.CanConfirm(appt))
	assert.True(t, doc.CanCancel(appt))
	assert.True(t, doc.CanComplete(appt))
	assert.True(t, doc.CanRefund(appt))
	assert.False(t, doc.CanPay(appt))

	otherDoc := For(domain.Actor{ID: strangerID, Role: domain.RoleDoctor})
	assert.False(t, otherDoc.CanConfirm(appt))
	assert.False(t, otherDoc.CanCancel(appt))
	assert.False(t, otherDoc.CanView(appt))

	pat := For(domain.Actor{ID: patientID, Role: domain.RolePatient})
	assert.False(t, pat.CanConfirm(appt))
	assert.True(t, pat.CanCancel(appt))
	assert.False(t, pat.CanComplete(appt))
	assert.False(t, pat.CanRefund(appt))
	assert.True(t, pat.CanPay(appt))

	admin := For(domain.Actor{ID: strangerID, Role: domain.RoleAdmin})
	assert.False(t, admin.CanConfirm(appt), "only the appointment's doctor confirms")
	assert.True(t, admin.CanCancel(appt))
	assert.True(t, admin.CanComplete(appt))
	assert.True(t, admin.CanRefund(appt))

	system := For(domain.SystemActor)
	assert.True(t, system.CanRefund(appt), "refunds after cancellation run as the system")
	assert.False(t, system.CanConfirm(appt))

	unknown := For(domain.Actor{ID: strangerID, Role: "GUEST"})
	assert.False(t, unknown.CanView(appt))
	assert.False(t, unknown.CanCancel(appt))
}
