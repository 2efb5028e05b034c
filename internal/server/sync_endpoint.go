package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"plataforma/internal/database/models"
)

const manualSyncsPerMinute = 3

func (s *Server) addSyncEndPoint(conn *echo.Group) {
	limiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Every(time.Minute / manualSyncsPerMinute),
			Burst:     manualSyncsPerMinute,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				return uid, nil
			}
			return c.RealIP(), nil
		},
	})
	conn.POST("/:id/sync", s.triggerSync, limiter)
}

// triggerSync is the manual path: unlike the webhook it awaits the run and
// surfaces a fatal sync error to the caller.
func (s *Server) triggerSync(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated"})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_connection_id"})
	}

	if _, err := s.DB.GetConnection(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "connection_not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db_error", "details": err.Error()})
	}

	if err := s.Syncer.SyncConnection(ctx, id, models.TriggerManual); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "sync_failed", "details": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// launchSync starts a detached run. The goroutine owns its error handling:
// by the time it fails the HTTP response that triggered it is long gone.
func (s *Server) launchSync(id uuid.UUID, trigger models.SyncTrigger) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("sync: panic in detached run for connection %s: %v", id, r)
			}
		}()
		if err := s.Syncer.SyncConnection(context.Background(), id, trigger); err != nil {
			log.Printf("sync: detached run for connection %s failed: %v", id, err)
		}
	}()
}
