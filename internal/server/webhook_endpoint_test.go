package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"plataforma/internal/database"
	"plataforma/internal/database/models"
	"plataforma/internal/pluggy"
	"plataforma/internal/syncer"
)

const webhookPath = "/api/v1/webhooks/pluggy"

type stubAggregator struct {
	itemCalls chan string
	itemErr   error
}

func (s *stubAggregator) GetItem(ctx context.Context, itemID string) (*pluggy.Item, error) {
	select {
	case s.itemCalls <- itemID:
	default:
	}
	if s.itemErr != nil {
		return nil, s.itemErr
	}
	return &pluggy.Item{ID: itemID, Status: "UPDATED", ExecutionStatus: "SUCCESS"}, nil
}

func (s *stubAggregator) ListAccounts(ctx context.Context, itemID string) ([]pluggy.Account, error) {
	return nil, nil
}

func (s *stubAggregator) ListTransactionsPage(ctx context.Context, accountID string, from time.Time, page int) (*pluggy.TransactionPage, error) {
	return &pluggy.TransactionPage{Page: page, TotalPages: 0}, nil
}

func newTestServer(t *testing.T) (*Server, *stubAggregator, *gorm.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	db, err := database.NewWithGorm(gdb)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.User{ID: "user-1", Name: "Test", Email: "test@example.com"}).Error)

	agg := &stubAggregator{itemCalls: make(chan string, 4)}
	s := &Server{
		Port:     0,
		DB:       db,
		Pluggy:   pluggy.New(),
		Syncer:   syncer.New(db, agg),
		Watchdog: &syncer.Watchdog{DB: db},
	}
	return s, agg, gdb
}

func seedConnection(t *testing.T, gdb *gorm.DB, itemID string) *models.Connection {
	t.Helper()
	conn := &models.Connection{
		ID:       uuid.New(),
		UserID:   "user-1",
		ItemID:   itemID,
		Provider: "pluggy",
		Status:   models.ConnectionActive,
	}
	require.NoError(t, gdb.Create(conn).Error)
	return conn
}

func postWebhook(handler http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, agg, gdb := newTestServer(t)
	seedConnection(t, gdb, "item-1")
	handler := s.RegisterRoutes()

	body := `{"event":"item/updated","itemId":"item-1"}`
	rec := postWebhook(handler, body, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(handler, body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	select {
	case item := <-agg.itemCalls:
		t.Fatalf("rejected webhook must not trigger a sync, but item %s was fetched", item)
	case <-time.After(150 * time.Millisecond):
	}

	var runCount int64
	require.NoError(t, gdb.Model(&models.SyncRun{}).Count(&runCount).Error)
	require.EqualValues(t, 0, runCount)
}

func TestWebhookWithoutConfiguredSecret(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "")
	s, _, _ := newTestServer(t)
	handler := s.RegisterRoutes()

	body := `{"event":"item/updated","itemId":"item-1"}`
	// Even a correctly signed request is refused when no secret is set.
	rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, _, _ := newTestServer(t)
	handler := s.RegisterRoutes()

	body := `{"event":`
	rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookAcknowledgesIgnoredEvents(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, agg, gdb := newTestServer(t)
	seedConnection(t, gdb, "item-1")
	handler := s.RegisterRoutes()

	for _, body := range []string{
		`{"event":"item/created","itemId":"item-1"}`,
		`{"event":"transactions/deleted","itemId":"item-1"}`,
		`{"event":"item/updated"}`,
	} {
		rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
		require.Equal(t, http.StatusOK, rec.Code, "body %s", body)
		require.Contains(t, rec.Body.String(), "ignored")
	}

	select {
	case <-agg.itemCalls:
		t.Fatal("ignored events must not trigger a sync")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWebhookTriggersDetachedSync(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, agg, gdb := newTestServer(t)
	conn := seedConnection(t, gdb, "item-7")
	handler := s.RegisterRoutes()

	body := `{"event":"item/updated","itemId":"item-7"}`
	rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "processing")

	select {
	case item := <-agg.itemCalls:
		require.Equal(t, "item-7", item)
	case <-time.After(2 * time.Second):
		t.Fatal("detached sync never reached the aggregator")
	}

	require.Eventually(t, func() bool {
		var run models.SyncRun
		if err := gdb.First(&run, "connection_id = ?", conn.ID).Error; err != nil {
			return false
		}
		return run.Status == models.SyncRunCompleted
	}, 2*time.Second, 20*time.Millisecond, "detached run should complete")

	var event models.WebhookEvent
	require.NoError(t, gdb.First(&event, "item_id = ?", "item-7").Error)
	require.Equal(t, "item/updated", event.Event)
}

func TestWebhookExtractsNestedItemID(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, agg, gdb := newTestServer(t)
	seedConnection(t, gdb, "item-9")
	handler := s.RegisterRoutes()

	body := `{"event":"item/updated","data":{"id":"item-9"}}`
	rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "processing")

	select {
	case item := <-agg.itemCalls:
		require.Equal(t, "item-9", item)
	case <-time.After(2 * time.Second):
		t.Fatal("nested item id was not honored")
	}
}

func TestWebhookUnknownItemIsAcknowledged(t *testing.T) {
	t.Setenv("PLUGGY_WEBHOOK_SECRET", "shh")
	s, _, _ := newTestServer(t)
	handler := s.RegisterRoutes()

	body := `{"event":"item/updated","itemId":"never-linked"}`
	rec := postWebhook(handler, body, pluggy.SignPayload("shh", []byte(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
}
