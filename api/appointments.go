package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/service/appointments"
	"github.com/Domenick1991/medbooking/internal/service/payments"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const timeLayout = time.RFC3339

type AppointmentHandler struct {
	service  appointments.AppointmentUseCase
	payments payments.PaymentUseCase
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type appointmentResponse struct {
	ID            string `json:"id"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	CancelReason  string `json:"cancelReason,omitempty"`
}

func NewAppointmentHandler(service appointments.AppointmentUseCase, payments payments.PaymentUseCase) *AppointmentHandler {
	return &AppointmentHandler{service: service, payments: payments}
}

func (h *AppointmentHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.book)
	router.GET("", h.listMine)
	router.GET("/:id", h.get)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/:id/complete", h.complete)
	router.POST("/:id/refund", h.refund)
}

func toAppointmentResponse(a *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            a.ID.String(),
		DoctorID:      a.DoctorID.String(),
		PatientID:     a.PatientID.String(),
		StartDateTime: a.Start.Format(timeLayout),
		EndDateTime:   a.End.Format(timeLayout),
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		Amount:        a.Amount.StringFixed(2),
		Currency:      a.Currency,
		CancelReason:  a.CancelReason,
	}
}

func (h *AppointmentHandler) book(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req appointments.BookInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.service.Book(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAppointmentResponse(a))
}

func (h *AppointmentHandler) listMine(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.service.ListMine(c.Request.Context(), actor, domain.AppointmentStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(list, func(a domain.Appointment, _ int) appointmentResponse {
		return toAppointmentResponse(&a)
	}))
}

func (h *AppointmentHandler) get(c *gin.Context) {
	h.run(c, h.service.Get)
}

func (h *AppointmentHandler) confirm(c *gin.Context) {
	h.run(c, h.service.Confirm)
}

func (h *AppointmentHandler) complete(c *gin.Context) {
	h.run(c, h.service.Complete)
}

func (h *AppointmentHandler) refund(c *gin.Context) {
	h.run(c, h.payments.Refund)
}

func (h *AppointmentHandler) cancel(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	a, err := h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(a))
}

// run serves the endpoints that take only the caller and the path id.
func (h *AppointmentHandler) run(c *gin.Context, op func(context.Context, domain.Actor, uuid.UUID) (*domain.Appointment, error)) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	a, err := op(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(a))
}
