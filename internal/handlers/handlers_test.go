package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nasiyabot/backend/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []telegram.Update
}

func (d *recordingDispatcher) HandleUpdate(_ context.Context, u telegram.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
}

func TestWebhookHandler_ServeUpdate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{
			name:       "message update",
			body:       `{"update_id":7,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/start"}}`,
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "unknown fields are tolerated",
			body:       `{"update_id":8,"edited_message":{"message_id":2}}`,
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "malformed json",
			body:       `{"update_id":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "two objects",
			body:       `{"update_id":1}{"update_id":2}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing update id",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &recordingDispatcher{}
			h := NewWebhookHandler(context.Background(), dispatcher, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeUpdate(rec, req)
			h.Wait()

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, dispatcher.updates, tt.wantCount)
		})
	}
}

func TestWebhookHandler_DecodesMessage(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	h := NewWebhookHandler(context.Background(), dispatcher, zap.NewNop())

	body := `{"update_id":9,"message":{"message_id":3,"from":{"id":42,"first_name":"Ann"},"chat":{"id":42,"type":"private"},"text":"hello"}}`
	rec := httptest.NewRecorder()
	h.ServeUpdate(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	h.Wait()

	require.Len(t, dispatcher.updates, 1)
	u := dispatcher.updates[0]
	require.NotNil(t, u.Message)
	assert.Equal(t, int64(42), u.Message.Chat.ID)
	assert.Equal(t, "hello", u.Message.Text)
}

func TestWebhookHandler_KeepsAccountOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &recordingDispatcher{}
	h := NewWebhookHandler(ctx, dispatcher, zap.NewNop())

	id := 1
	for i := 0; i < 20; i++ {
		for _, account := range []int{7, 8} {
			body := fmt.Sprintf(`{"update_id":%d,"message":{"message_id":%d,"from":{"id":%d,"first_name":"U"},"chat":{"id":%d,"type":"private"},"text":"%d"}}`,
				id, id, account, account, id)
			rec := httptest.NewRecorder()
			h.ServeUpdate(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
			require.Equal(t, http.StatusOK, rec.Code)
			id++
		}
	}
	h.Wait()
	cancel()
	h.Close()

	last := map[int64]int64{}
	for _, u := range dispatcher.updates {
		account := u.AccountID()
		assert.Greater(t, u.UpdateID, last[account], "account %d out of order", account)
		last[account] = u.UpdateID
	}
	assert.Len(t, dispatcher.updates, 40)
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		NewHealthHandler(db, zap.NewNop()).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		rec := httptest.NewRecorder()
		NewHealthHandler(db, zap.NewNop()).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unhealthy"}`, rec.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
