package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"plataforma/internal/database/models"
)

// callTriggerSync invokes the handler directly with an authenticated echo
// context, sidestepping the JWT middleware.
func callTriggerSync(t *testing.T, s *Server, userID, connID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/connections/:id/sync")
	c.SetParamNames("id")
	c.SetParamValues(connID)
	c.Set("user_id", userID)
	require.NoError(t, s.triggerSync(c))
	return rec
}

func TestManualSyncCompletes(t *testing.T) {
	t.Parallel()
	s, _, gdb := newTestServer(t)
	conn := seedConnection(t, gdb, "item-manual")

	rec := callTriggerSync(t, s, "user-1", conn.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var run models.SyncRun
	require.NoError(t, gdb.First(&run, "connection_id = ?", conn.ID).Error)
	require.Equal(t, models.SyncRunCompleted, run.Status)
	require.Equal(t, models.TriggerManual, run.TriggeredBy)
}

func TestManualSyncSurfacesFatalError(t *testing.T) {
	t.Parallel()
	s, agg, gdb := newTestServer(t)
	conn := seedConnection(t, gdb, "item-broken")
	agg.itemErr = errors.New("aggregator down")

	rec := callTriggerSync(t, s, "user-1", conn.ID.String())
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "sync_failed")

	var stored models.Connection
	require.NoError(t, gdb.First(&stored, "id = ?", conn.ID).Error)
	require.Equal(t, models.ConnectionOutdated, stored.Status)
	require.False(t, stored.IsSyncing)
}

func TestManualSyncUnknownConnection(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := callTriggerSync(t, s, "user-1", uuid.NewString())
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManualSyncWhileLockedIsNoOp(t *testing.T) {
	t.Parallel()
	s, _, gdb := newTestServer(t)
	conn := seedConnection(t, gdb, "item-locked")

	held, err := s.DB.TryAcquireSyncLock(context.Background(), conn.ID)
	require.NoError(t, err)
	require.True(t, held)

	rec := callTriggerSync(t, s, "user-1", conn.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, "contention is not an error for the caller")

	var runCount int64
	require.NoError(t, gdb.Model(&models.SyncRun{}).Count(&runCount).Error)
	require.EqualValues(t, 0, runCount)
}
