package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"plataforma/internal/database/models"
	"plataforma/internal/pluggy"
	"plataforma/types"
)

// handleWebhook is the aggregator ingress. The signature check over the raw
// body is the only authentication on this route; nothing below it runs
// without a valid signature. The sync itself is detached so the 200 goes out
// within the aggregator's delivery timeout.
func (s *Server) handleWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable_body"})
	}

	secret := os.Getenv("PLUGGY_WEBHOOK_SECRET")
	if secret == "" {
		// An unconfigured secret must never degrade into "accept".
		log.Printf("webhook: PLUGGY_WEBHOOK_SECRET not set, rejecting")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook_secret_not_configured"})
	}

	signature := c.Request().Header.Get("X-Webhook-Signature")
	if !pluggy.VerifySignature(secret, rawBody, signature) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_signature"})
	}

	var payload types.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_json"})
	}

	if payload.Event != "item/updated" {
		// Acknowledge anything we don't act on, or the aggregator
		// keeps retrying it.
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	itemID := payload.ExtractItemID()
	if itemID == "" {
		log.Printf("webhook: %s event without an item id, ignoring", payload.Event)
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	if err := s.DB.RecordWebhookEvent(ctx, &models.WebhookEvent{
		Event:   payload.Event,
		ItemID:  itemID,
		Payload: datatypes.JSON(rawBody),
	}); err != nil {
		log.Printf("webhook: failed to record event for item %s: %v", itemID, err)
	}

	conn, err := s.DB.GetConnectionByItemID(ctx, itemID)
	if err != nil {
		log.Printf("webhook: no connection for item %s, ignoring", itemID)
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	s.launchSync(conn.ID, models.TriggerWebhook)

	return c.JSON(http.StatusOK, echo.Map{"status": "processing"})
}
