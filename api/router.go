package api

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/Domenick1991/medbooking/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPISpec []byte

type RouterConfig struct {
	Availability *AvailabilityHandler
	Appointments *AppointmentHandler
	Payments     *PaymentHandler
	Tokens       *auth.TokenManager
	SwaggerURL   string
	Logger       zerolog.Logger
	// Ready reports whether the backing stores answer; nil means always ready.
	Ready func(context.Context) error
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openAPISpec)
	})
	if cfg.SwaggerURL != "" {
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(cfg.SwaggerURL))))
	}

	cfg.Payments.RegisterCallback(router.Group("/payments"))

	authed := router.Group("/", auth.Middleware(cfg.Tokens))
	cfg.Availability.Register(authed.Group("/availability"))
	cfg.Appointments.Register(authed.Group("/appointments"))
	cfg.Payments.Register(authed.Group("/payments"))

	return router
}
