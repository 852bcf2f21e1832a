package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/notify"
	"github.com/nasiyabot/backend/internal/telegram"
	"go.uber.org/zap"
)

// CallbackNotifyAll is the inline action attached to the daily digest.
const CallbackNotifyAll = "notifyall"

// ReminderService sends the daily debtor digest and courtesy reminders to debtors.
type ReminderService struct {
	store    *database.Store
	notifier *notify.Notifier
	delay    time.Duration
	logger   *zap.Logger
}

func NewReminderService(store *database.Store, notifier *notify.Notifier, delay time.Duration, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		store:    store,
		notifier: notifier,
		delay:    delay,
		logger:   logger.Named("reminders"),
	}
}

func (s *ReminderService) Name() string { return "debtor-digest" }

// Run sends every tenant owner with outstanding debtors a summary and a notify-all control.
func (s *ReminderService) Run(ctx context.Context) error {
	digests, err := s.store.TenantDigests(ctx)
	if err != nil {
		return fmt.Errorf("load digests: %w", err)
	}

	markup := telegram.Inline([]telegram.InlineKeyboardButton{telegram.Button("📤 Notify all debtors", CallbackNotifyAll)})
	recipients := make([]notify.Recipient, 0, len(digests))
	for _, d := range digests {
		recipients = append(recipients, notify.Recipient{
			ChatID: d.OwnerID,
			Text: fmt.Sprintf("📊 <b>Daily report: %s</b>\n\nDebtors: %d\nOutstanding: <b>%s</b>",
				html.EscapeString(d.TenantName), d.Debtors, FormatAmount(d.Outstanding)),
			Markup: markup,
		})
	}
	delivered := s.notifier.NotifyEach(ctx, recipients, s.delay)
	s.logger.Info("Digest sent", zap.Int("owners", len(recipients)), zap.Int("delivered", delivered))
	return nil
}

// RemindTenantDebtors messages every linked debtor of the tenant and returns how many were reached.
func (s *ReminderService) RemindTenantDebtors(ctx context.Context, tenantID int64, storeName string) (int, error) {
	debtors, err := s.store.ListTenantDebtors(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	recipients := make([]notify.Recipient, 0, len(debtors))
	for _, c := range debtors {
		recipients = append(recipients, notify.Recipient{
			ChatID: *c.AccountID,
			Text: fmt.Sprintf("🔔 <b>Reminder</b>\n\nHello, %s! You owe <b>%s</b> at %s.\nPlease settle it when you can.",
				html.EscapeString(c.FullName), FormatAmount(c.Balance), html.EscapeString(storeName)),
		})
	}
	return s.notifier.NotifyEach(ctx, recipients, s.delay), nil
}
