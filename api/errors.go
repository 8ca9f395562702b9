package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindIllegalTransition:
		return http.StatusConflict
	case domain.KindPricingNotConfigured:
		return http.StatusUnprocessableEntity
	case domain.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, errorResponse{Error: msg, Code: domain.CodeOf(err)})
}

func badRequest(c *gin.Context, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		err = domain.Errorf(domain.ErrInvalidInput, "%v", err)
	}
	writeError(c, err)
}
