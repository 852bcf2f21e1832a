package bot

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nasiyabot/backend/internal/audit"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/notify"
	"github.com/nasiyabot/backend/internal/services"
	"github.com/nasiyabot/backend/internal/session"
	"github.com/nasiyabot/backend/internal/telegram"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type outbound struct {
	chatID int64
	text   string
	markup any
}

type answered struct {
	id    string
	text  string
	alert bool
}

// fakeTransport records every outbound call. Chats listed in unreachable fail delivery.
type fakeTransport struct {
	mu          sync.Mutex
	messages    []outbound
	documents   []outbound
	copies      []outbound
	answers     []answered
	edits       []outbound
	deleted     []int64
	unreachable map[int64]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{unreachable: map[int64]bool{}}
}

var errUnreachable = errors.New("Forbidden: bot was blocked by the user")

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, markup any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[chatID] {
		return errUnreachable
	}
	f.messages = append(f.messages, outbound{chatID: chatID, text: text, markup: markup})
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, fileName string, r io.Reader, _ string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, outbound{chatID: chatID, text: fileName})
	return nil
}

func (f *fakeTransport) CopyMessage(_ context.Context, chatID, _, _ int64, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[chatID] {
		return errUnreachable
	}
	f.copies = append(f.copies, outbound{chatID: chatID, text: caption})
	return nil
}

func (f *fakeTransport) AnswerCallbackQuery(_ context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answered{id: callbackID, text: text, alert: alert})
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, chatID, _ int64, text string, markup any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, outbound{chatID: chatID, text: text, markup: markup})
	return nil
}

// last returns the latest message sent to chatID.
func (f *fakeTransport) last(chatID int64) outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].chatID == chatID {
			return f.messages[i]
		}
	}
	return outbound{}
}

// received reports whether any message to chatID contains part.
func (f *fakeTransport) received(chatID int64, part string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.chatID == chatID && strings.Contains(m.text, part) {
			return true
		}
	}
	return false
}

func (f *fakeTransport) lastAnswer() answered {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return answered{}
	}
	return f.answers[len(f.answers)-1]
}

type harness struct {
	bot       *Bot
	store     *database.Store
	ledger    *services.LedgerService
	sessions  *session.MemoryStore
	transport *fakeTransport
	messageID atomic.Int64
}

func newHarness(t *testing.T, adminIDs ...int64) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, &database.DBConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "nasiya.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite, zap.NewNop()))
	store := database.NewStore(db, database.DriverSQLite)

	logger := zap.NewNop()
	transport := newFakeTransport()
	notifier := notify.NewNotifier(transport, logger)
	phones := services.NewPhoneService("UZ")
	identity := services.NewIdentityService(store, adminIDs, nil)
	ledger := services.NewLedgerService(store, phones, audit.NewAuditLogger(logger), logger)
	sessions := session.NewMemoryStore()

	b := New(transport, store, Services{
		Ledger:    ledger,
		Identity:  identity,
		Reports:   services.NewReportService(store, phones, nil, logger),
		Reminders: services.NewReminderService(store, notifier, 0, logger),
		Phones:    phones,
	}, sessions, notifier, Config{AdminContact: "@support"}, logger)

	return &harness{bot: b, store: store, ledger: ledger, sessions: sessions, transport: transport}
}

func (h *harness) message(from int64) *telegram.Message {
	return &telegram.Message{
		MessageID: h.messageID.Add(1),
		From:      &telegram.User{ID: from, FirstName: "User", LastName: "Test"},
		Chat:      telegram.Chat{ID: from, Type: "private"},
	}
}

func (h *harness) send(from int64, text string) {
	m := h.message(from)
	m.Text = text
	h.bot.HandleUpdate(context.Background(), telegram.Update{UpdateID: m.MessageID, Message: m})
}

func (h *harness) sendContact(from int64, phone string) {
	m := h.message(from)
	m.Contact = &telegram.Contact{PhoneNumber: phone, UserID: from}
	h.bot.HandleUpdate(context.Background(), telegram.Update{UpdateID: m.MessageID, Message: m})
}

func (h *harness) sendPhoto(from int64, caption string) {
	m := h.message(from)
	m.Caption = caption
	m.Photo = []telegram.PhotoSize{{File: telegram.File{FileID: "photo"}, Width: 90, Height: 90}}
	h.bot.HandleUpdate(context.Background(), telegram.Update{UpdateID: m.MessageID, Message: m})
}

func (h *harness) press(from int64, data string) {
	id := h.messageID.Add(1)
	h.bot.HandleUpdate(context.Background(), telegram.Update{
		UpdateID: id,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb",
			From:    telegram.User{ID: from, FirstName: "User"},
			Message: &telegram.Message{MessageID: id, Chat: telegram.Chat{ID: from}},
			Data:    data,
		},
	})
}

// state returns the pending session of id, or nil.
func (h *harness) state(t *testing.T, id int64) *session.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), id)
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	require.NoError(t, err)
	return s
}

func (h *harness) owner(t *testing.T, id int64, tenant string) {
	t.Helper()
	_, err := h.ledger.RegisterStore(context.Background(), services.Profile{ID: id, FullName: "Owner"}, tenant,
		[]string{"998901110000"})
	require.NoError(t, err)
}

func (h *harness) buyer(t *testing.T, id int64, phone string) {
	t.Helper()
	_, _, err := h.ledger.RegisterCustomer(context.Background(), services.Profile{ID: id, FullName: "Buyer"}, phone)
	require.NoError(t, err)
}
