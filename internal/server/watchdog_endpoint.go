package server

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleWatchdogSweep is hit by an external scheduler. With no secret
// configured the endpoint is inert rather than open.
func (s *Server) handleWatchdogSweep(c echo.Context) error {
	secret := os.Getenv("WATCHDOG_SECRET")
	if secret == "" {
		return c.JSON(http.StatusOK, echo.Map{"status": "disabled"})
	}

	provided := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if provided == "" {
		provided = c.QueryParam("secret")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_secret"})
	}

	swept, err := s.Watchdog.Sweep(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep_failed", "details": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "swept": swept})
}
