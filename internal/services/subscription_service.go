package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/notify"
	"go.uber.org/zap"
)

// SubscriptionService blocks staff accounts on the monthly anniversary of their registration.
type SubscriptionService struct {
	store    *database.Store
	ledger   *LedgerService
	identity *IdentityService
	notifier *notify.Notifier
	location *time.Location
	contact  string
	logger   *zap.Logger
}

func NewSubscriptionService(store *database.Store, ledger *LedgerService, identity *IdentityService,
	notifier *notify.Notifier, location *time.Location, contact string, logger *zap.Logger) *SubscriptionService {
	if location == nil {
		location = time.UTC
	}
	return &SubscriptionService{
		store:    store,
		ledger:   ledger,
		identity: identity,
		notifier: notifier,
		location: location,
		contact:  contact,
		logger:   logger.Named("subscription"),
	}
}

func (s *SubscriptionService) Name() string { return "subscription" }

// Due reports whether an account created at createdAt renews on now. Only the day of month is
// compared, so accounts created on the 29th to 31st skip months that lack that day.
func (s *SubscriptionService) Due(createdAt, now time.Time) bool {
	created := createdAt.In(s.location)
	today := now.In(s.location)
	if created.Day() != today.Day() {
		return false
	}
	cy, cm, cd := created.Date()
	ty, tm, td := today.Date()
	return !(cy == ty && cm == tm && cd == td)
}

// Run blocks every due staff account and notifies it and the superadmins.
func (s *SubscriptionService) Run(ctx context.Context) error {
	staff, err := s.store.ListAccountsByRole(ctx, models.RoleStaff)
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}

	now := s.store.Now()
	blocked := 0
	for _, acc := range staff {
		if s.identity.IsSuperadmin(acc.ID, acc.Username) || acc.CreatedAt.IsZero() {
			continue
		}
		if !s.Due(acc.CreatedAt, now) {
			continue
		}
		if err := s.ledger.BlockAccount(ctx, 0, acc.ID); err != nil {
			s.logger.Error("Failed to block account", zap.Int64("account_id", acc.ID), zap.Error(err))
			continue
		}
		blocked++

		text := "⛔️ <b>Your subscription has expired.</b>\n\nYour account has been blocked."
		if s.contact != "" {
			text += "\nTo renew, contact " + html.EscapeString(s.contact) + "."
		}
		_ = s.notifier.Notify(ctx, acc.ID, text, nil)

		adminText := fmt.Sprintf("⛔️ Subscription expired\n\nStore: <b>%s</b>\nAccount: %s (<code>%d</code>)",
			html.EscapeString(acc.TenantName), html.EscapeString(acc.FullName), acc.ID)
		for _, id := range s.identity.SuperadminIDs() {
			_ = s.notifier.Notify(ctx, id, adminText, nil)
		}
	}

	s.logger.Info("Subscription check finished", zap.Int("staff", len(staff)), zap.Int("blocked", blocked))
	return nil
}
