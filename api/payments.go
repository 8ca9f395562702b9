package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/gateway"
	"github.com/Domenick1991/medbooking/internal/service/payments"
	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 64 << 10

type PaymentHandler struct {
	service       payments.PaymentUseCase
	webhookSecret string
}

type sessionResponse struct {
	PaymentID     string `json:"paymentId"`
	AppointmentID string `json:"appointmentId"`
	SessionRef    string `json:"sessionRef"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type callbackResponse struct {
	Received      bool   `json:"received"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

func NewPaymentHandler(service payments.PaymentUseCase, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{service: service, webhookSecret: webhookSecret}
}

// Register mounts the authenticated payment routes.
func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/sessions/:appointmentId", h.createSession)
}

// RegisterCallback mounts the gateway webhook, which authenticates by signature.
func (h *PaymentHandler) RegisterCallback(router *gin.RouterGroup) {
	router.POST("/callback", h.callback)
}

func (h *PaymentHandler) createSession(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "appointmentId")
	if !ok {
		return
	}

	p, err := h.service.CreateSession(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		PaymentID:     p.ID.String(),
		AppointmentID: p.AppointmentID.String(),
		SessionRef:    p.SessionRef,
		CheckoutURL:   p.CheckoutURL,
		Status:        string(p.Status),
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
	})
}

func (h *PaymentHandler) callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := gateway.VerifySignature(h.webhookSecret, body, c.GetHeader(gateway.SignatureHeader)); err != nil {
		writeError(c, err)
		return
	}

	var cb gateway.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		badRequest(c, err)
		return
	}
	if cb.SessionRef == "" {
		badRequest(c, domain.Errorf(domain.ErrInvalidInput, "session_ref is required"))
		return
	}

	ctx := c.Request.Context()
	switch cb.Event {
	case gateway.EventPaymentSucceeded:
		a, err := h.service.OnGatewayConfirmed(ctx, cb.SessionRef)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, callbackResponse{Received: true, PaymentStatus: string(a.PaymentStatus)})
	case gateway.EventPaymentFailed:
		h.closeSession(c, cb.SessionRef, domain.PaymentRecordFailed)
	case gateway.EventSessionExpired:
		h.closeSession(c, cb.SessionRef, domain.PaymentRecordCancelled)
	default:
		// unknown events are acknowledged so the gateway stops redelivering
		c.JSON(http.StatusOK, callbackResponse{Received: true})
	}
}

func (h *PaymentHandler) closeSession(c *gin.Context, ref string, status domain.PaymentRecordStatus) {
	if err := h.service.OnGatewayClosed(c.Request.Context(), ref, status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, callbackResponse{Received: true})
}
