package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unauthenticated surfaces: the webhook authenticates via its HMAC
	// signature, the watchdog via its own shared secret.
	e.POST("/api/v1/webhooks/pluggy", s.handleWebhook)
	e.POST("/api/v1/internal/watchdog", s.handleWatchdogSweep)

	api := e.Group("/api/v1", JWTMiddleware)
	s.addConnectionEndPoints(api)

	return e
}
