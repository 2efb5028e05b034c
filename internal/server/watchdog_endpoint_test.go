package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plataforma/internal/database/models"
)

const watchdogPath = "/api/v1/internal/watchdog"

func TestWatchdogEndpointInertWithoutSecret(t *testing.T) {
	t.Setenv("WATCHDOG_SECRET", "")
	s, _, _ := newTestServer(t)
	handler := s.RegisterRoutes()

	req := httptest.NewRequest(http.MethodPost, watchdogPath, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "disabled")
}

func TestWatchdogEndpointRejectsBadSecret(t *testing.T) {
	t.Setenv("WATCHDOG_SECRET", "sweep-secret")
	s, _, _ := newTestServer(t)
	handler := s.RegisterRoutes()

	req := httptest.NewRequest(http.MethodPost, watchdogPath, nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWatchdogEndpointSweepsStaleRuns(t *testing.T) {
	t.Setenv("WATCHDOG_SECRET", "sweep-secret")
	s, _, gdb := newTestServer(t)
	conn := seedConnection(t, gdb, "item-stale")
	handler := s.RegisterRoutes()

	run := &models.SyncRun{ConnectionID: &conn.ID, TriggeredBy: models.TriggerWebhook}
	require.NoError(t, s.DB.CreateSyncRun(context.Background(), run))
	require.NoError(t, gdb.Model(&models.SyncRun{}).
		Where("id = ?", run.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-15*time.Minute)).Error)

	// Secret via query parameter is accepted too; that is what the
	// scheduler uses.
	req := httptest.NewRequest(http.MethodPost, watchdogPath+"?secret=sweep-secret", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"swept":1`)

	var after models.SyncRun
	require.NoError(t, gdb.First(&after, "id = ?", run.ID).Error)
	require.Equal(t, models.SyncRunFailed, after.Status)
}
