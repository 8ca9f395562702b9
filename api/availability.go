package api

import (
	"net/http"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/service/availability"
	"github.com/Domenick1991/medbooking/internal/service/slots"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type AvailabilityHandler struct {
	service availability.AvailabilityUseCase
	slots   slots.SlotUseCase
}

type windowResponse struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctorId"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

type slotResponse struct {
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
}

func NewAvailabilityHandler(service availability.AvailabilityUseCase, slots slots.SlotUseCase) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, slots: slots}
}

func (h *AvailabilityHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
	router.GET("/doctor/:id", h.list)
	router.GET("/doctor/:id/slots", h.listSlots)
}

func toWindowResponse(w *domain.Availability) windowResponse {
	return windowResponse{
		ID:          w.ID.String(),
		DoctorID:    w.DoctorID.String(),
		Date:        w.Date.String(),
		StartTime:   w.StartTime.String(),
		EndTime:     w.EndTime.String(),
		IsAvailable: w.IsAvailable,
	}
}

func (h *AvailabilityHandler) create(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req availability.WindowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWindowResponse(w))
}

func (h *AvailabilityHandler) update(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req availability.WindowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWindowResponse(w))
}

func (h *AvailabilityHandler) delete(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AvailabilityHandler) list(c *gin.Context) {
	doctorID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	date, err := domain.ParseDate(c.Query("date"))
	if err != nil {
		badRequest(c, err)
		return
	}

	windows, err := h.service.List(c.Request.Context(), doctorID, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(windows, func(w domain.Availability, _ int) windowResponse {
		return toWindowResponse(&w)
	}))
}

func (h *AvailabilityHandler) listSlots(c *gin.Context) {
	doctorID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	date, err := domain.ParseDate(c.Query("date"))
	if err != nil {
		badRequest(c, err)
		return
	}

	free, err := h.slots.GenerateSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(free, func(s domain.Slot, _ int) slotResponse {
		return slotResponse{StartDateTime: s.Start.Format(timeLayout), EndDateTime: s.End.Format(timeLayout)}
	}))
}
