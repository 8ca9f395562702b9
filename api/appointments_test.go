package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/medbooking/internal/auth"
	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/service/appointments"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testContext(method, target string, body []byte, actor *domain.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if actor != nil {
		auth.SetActor(c, *actor)
	}
	return c, w
}

func sampleAppointment() *domain.Appointment {
	start := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)
	return &domain.Appointment{
		ID:            uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		Start:         start,
		End:           start.Add(30 * time.Minute),
		Status:        domain.AppointmentRequested,
		PaymentStatus: domain.PaymentNone,
	}
}

func TestAppointmentHandler_book(t *testing.T) {
	mockService := &MockAppointmentUseCase{}
	handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
	patient := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}
	a := sampleAppointment()

	input := appointments.BookInput{DoctorID: a.DoctorID, Start: a.Start, End: a.End}
	body, _ := json.Marshal(input)
	c, w := testContext(http.MethodPost, "/appointments", body, &patient)

	mockService.On("Book", mock.Anything, patient, mock.MatchedBy(func(in appointments.BookInput) bool {
		return in.DoctorID == a.DoctorID && in.Start.Equal(a.Start) && in.End.Equal(a.End)
	})).Return(a, nil)

	handler.book(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp appointmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, a.ID.String(), resp.ID)
	assert.Equal(t, "REQUESTED", resp.Status)
	assert.Equal(t, "2030-01-02T09:00:00Z", resp.StartDateTime)
	mockService.AssertExpectations(t)
}

func TestAppointmentHandler_bookConflict(t *testing.T) {
	mockService := &MockAppointmentUseCase{}
	handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
	patient := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}

	body, _ := json.Marshal(appointments.BookInput{DoctorID: uuid.New(), Start: time.Now().Add(time.Hour), End: time.Now().Add(90 * time.Minute)})
	c, w := testContext(http.MethodPost, "/appointments", body, &patient)
	mockService.On("Book", mock.Anything, patient, mock.Anything).
		Return(nil, domain.Errorf(domain.ErrSlotUnavailable, "taken"))

	handler.book(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "slot_unavailable", resp.Code)
}

func TestAppointmentHandler_bookMalformed(t *testing.T) {
	handler := NewAppointmentHandler(&MockAppointmentUseCase{}, &MockPaymentUseCase{})
	patient := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}
	c, w := testContext(http.MethodPost, "/appointments", []byte(`{"doctorId":"nope"}`), &patient)

	handler.book(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandler_confirm(t *testing.T) {
	mockService := &MockAppointmentUseCase{}
	handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
	doctor := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
	a := sampleAppointment()
	a.Status = domain.AppointmentConfirmed
	a.PaymentStatus = domain.PaymentPending
	a.Amount = decimal.NewFromInt(50)
	a.Currency = "USD"

	c, w := testContext(http.MethodPost, "/appointments/"+a.ID.String()+"/confirm", nil, &doctor)
	c.Params = gin.Params{{Key: "id", Value: a.ID.String()}}
	mockService.On("Confirm", mock.Anything, doctor, a.ID).Return(a, nil)

	handler.confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp appointmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "50.00", resp.Amount)
	assert.Equal(t, "PENDING", resp.PaymentStatus)
}

func TestAppointmentHandler_errorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"illegal transition", &domain.IllegalTransitionError{From: domain.AppointmentCancelled, Action: "complete"}, http.StatusConflict},
		{"forbidden", domain.Errorf(domain.ErrForbidden, "no"), http.StatusForbidden},
		{"not found", domain.Errorf(domain.ErrNotFound, "appointment"), http.StatusNotFound},
		{"pricing", domain.Errorf(domain.ErrPricingNotConfigured, "doctor"), http.StatusUnprocessableEntity},
		{"gateway", &domain.GatewayError{Op: "refund", Err: errors.New("down")}, http.StatusBadGateway},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockAppointmentUseCase{}
			handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
			admin := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
			id := uuid.New()

			c, w := testContext(http.MethodPost, "/appointments/"+id.String()+"/complete", nil, &admin)
			c.Params = gin.Params{{Key: "id", Value: id.String()}}
			mockService.On("Complete", mock.Anything, admin, id).Return(nil, tt.err)

			handler.complete(c)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Contains(t, w.Body.String(), "internal error")
				assert.NotContains(t, w.Body.String(), "boom")
			}
		})
	}
}

func TestAppointmentHandler_cancelWithReason(t *testing.T) {
	mockService := &MockAppointmentUseCase{}
	handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
	patient := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}
	a := sampleAppointment()
	a.Status = domain.AppointmentCancelled
	a.CancelReason = "travel"

	c, w := testContext(http.MethodPost, "/appointments/"+a.ID.String()+"/cancel", []byte(`{"reason":"travel"}`), &patient)
	c.Params = gin.Params{{Key: "id", Value: a.ID.String()}}
	mockService.On("Cancel", mock.Anything, patient, a.ID, "travel").Return(a, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cancelReason":"travel"`)
}

func TestAppointmentHandler_refund(t *testing.T) {
	payments := &MockPaymentUseCase{}
	handler := NewAppointmentHandler(&MockAppointmentUseCase{}, payments)
	doctor := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
	a := sampleAppointment()
	a.PaymentStatus = domain.PaymentRefunded

	c, w := testContext(http.MethodPost, "/appointments/"+a.ID.String()+"/refund", nil, &doctor)
	c.Params = gin.Params{{Key: "id", Value: a.ID.String()}}
	payments.On("Refund", mock.Anything, doctor, a.ID).Return(a, nil)

	handler.refund(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paymentStatus":"REFUNDED"`)
}

func TestAppointmentHandler_badID(t *testing.T) {
	handler := NewAppointmentHandler(&MockAppointmentUseCase{}, &MockPaymentUseCase{})
	doctor := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
	c, w := testContext(http.MethodGet, "/appointments/x", nil, &doctor)
	c.Params = gin.Params{{Key: "id", Value: "x"}}

	handler.get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandler_listMine(t *testing.T) {
	mockService := &MockAppointmentUseCase{}
	handler := NewAppointmentHandler(mockService, &MockPaymentUseCase{})
	patient := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}

	c, w := testContext(http.MethodGet, "/appointments?status=CONFIRMED", nil, &patient)
	mockService.On("ListMine", mock.Anything, patient, domain.AppointmentConfirmed).
		Return([]domain.Appointment{*sampleAppointment(), *sampleAppointment()}, nil)

	handler.listMine(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []appointmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestAppointmentHandler_unauthenticated(t *testing.T) {
	handler := NewAppointmentHandler(&MockAppointmentUseCase{}, &MockPaymentUseCase{})
	c, w := testContext(http.MethodGet, "/appointments", nil, nil)

	handler.listMine(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
