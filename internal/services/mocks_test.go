package services

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/nasiyabot/backend/internal/audit"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/notify"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	args := m.Called(ctx, chatID, text, markup)
	return args.Error(0)
}

func (m *MockMessenger) SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) error {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, chatID, fileName, data, caption)
	return args.Error(0)
}

func (m *MockMessenger) CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error {
	args := m.Called(ctx, chatID, fromChatID, messageID, caption)
	return args.Error(0)
}

type fixture struct {
	store     *database.Store
	messenger *MockMessenger
	notifier  *notify.Notifier
	phones    *PhoneService
	identity  *IdentityService
	ledger    *LedgerService
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, &database.DBConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "nasiya.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite, zap.NewNop()))
	return database.NewStore(db, database.DriverSQLite)
}

func newFixture(t *testing.T, adminIDs ...int64) *fixture {
	t.Helper()
	store := newTestStore(t)
	messenger := new(MockMessenger)
	phones := NewPhoneService("UZ")
	identity := NewIdentityService(store, adminIDs, []string{"root_admin"})
	return &fixture{
		store:     store,
		messenger: messenger,
		notifier:  notify.NewNotifier(messenger, zap.NewNop()),
		phones:    phones,
		identity:  identity,
		ledger:    NewLedgerService(store, phones, audit.NewAuditLogger(zap.NewNop()), zap.NewNop()),
	}
}

// freeze pins the store clock to at.
func (f *fixture) freeze(at time.Time) {
	f.store.SetClock(func() time.Time { return at })
}

func (f *fixture) owner(t *testing.T, id int64, tenant string) *models.Account {
	t.Helper()
	acc, err := f.ledger.RegisterStore(context.Background(), Profile{ID: id, FullName: "Owner"}, tenant, []string{"998901110000"})
	require.NoError(t, err)
	return acc
}
