package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"plataforma/internal/database/models"
	"plataforma/types"
)

func (s *Server) addConnectionEndPoints(g *echo.Group) {
	conn := g.Group("/connections")
	conn.GET("", s.listConnections)
	conn.POST("", s.createConnection)
	conn.POST("/token", s.createConnectToken)
	conn.DELETE("/:id", s.deleteConnection)
	s.addSyncEndPoint(conn)
}

func (s *Server) listConnections(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated"})
	}

	conns, err := s.DB.ListConnections(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db_error", "details": err.Error()})
	}

	out := make([]echo.Map, 0, len(conns))
	for _, conn := range conns {
		out = append(out, echo.Map{
			"id":                 conn.ID,
			"item_id":            conn.ItemID,
			"provider":           conn.Provider,
			"status":             conn.Status,
			"last_error":         conn.LastError,
			"last_sync_at":       conn.LastSyncAt,
			"consent_expires_at": conn.ConsentExpiresAt,
			"created_at":         conn.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"connections": out})
}

// createConnection registers an item the user just linked through the
// aggregator's widget, then kicks off the first sync in the background.
func (s *Server) createConnection(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated"})
	}

	var req types.CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_payload", "details": err.Error()})
	}
	if req.ItemID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id_required"})
	}

	conn := models.Connection{
		ID:       uuid.New(),
		UserID:   userID,
		ItemID:   req.ItemID,
		Provider: req.Provider,
		Status:   models.ConnectionUpdating,
	}
	if err := s.DB.CreateConnection(ctx, &conn); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed_to_create_connection", "details": err.Error()})
	}

	s.launchSync(conn.ID, models.TriggerWebhook)

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      conn.ID,
		"item_id": conn.ItemID,
		"status":  conn.Status,
	})
}

func (s *Server) createConnectToken(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated"})
	}

	var req types.ConnectTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_payload", "details": err.Error()})
	}

	token, err := s.Pluggy.CreateConnectToken(ctx, userID, req.ItemID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed_to_create_connect_token", "details": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": token})
}

// deleteConnection disconnects an item: owned accounts are detached, their
// transactions stay.
func (s *Server) deleteConnection(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated"})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_connection_id"})
	}

	if err := s.DB.DeleteConnection(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "connection_not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db_error", "details": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "disconnected"})
}
