package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/session"
	"go.uber.org/zap"
)

func escape(s string) string { return html.EscapeString(s) }

// phoneInput extracts a canonical phone from a shared contact or typed text.
func (b *Bot) phoneInput(r *request) (string, bool) {
	raw := r.text()
	if r.message != nil && r.message.Contact != nil {
		raw = r.message.Contact.PhoneNumber
	}
	phone := b.phones.Clean(raw)
	return phone, b.validator.ValidPhone(phone)
}

func (b *Bot) chooseShop(ctx context.Context, r *request) error {
	b.send(ctx, r.chatID, "🏪 Register a new store to start keeping ledgers.", shopKeyboard())
	return nil
}

func (b *Bot) askStoreName(ctx context.Context, r *request) error {
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateStoreName, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Enter the store name (at least 3 characters):", cancelKeyboard())
	return nil
}

func (b *Bot) onStoreName(ctx context.Context, r *request, sess *session.Session) error {
	name := r.text()
	if !b.validator.ValidStoreName(name) {
		b.send(ctx, r.chatID, "The name must be 3 to 64 characters. Try again:", cancelKeyboard())
		return nil
	}
	taken, err := b.store.TenantNameTaken(ctx, name, r.user.ID)
	if err != nil {
		return err
	}
	if taken {
		b.send(ctx, r.chatID, "This store name is already taken. Choose another:", cancelKeyboard())
		return nil
	}

	sess.State = session.StateStorePhone
	sess.Data.StoreName = name
	if err := b.sessions.Set(ctx, r.user.ID, sess); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "📞 Send the store phone number or share your contact:", contactKeyboard(labelSkip))
	return nil
}

func (b *Bot) onStorePhone(ctx context.Context, r *request, sess *session.Session) error {
	switch r.text() {
	case labelDone, labelSkip:
		return b.askRegConfirm(ctx, r, sess)
	case labelAddPhone:
		b.send(ctx, r.chatID, "Send another phone number:", contactKeyboard(labelDone))
		return nil
	}

	phone, ok := b.phoneInput(r)
	if !ok {
		b.send(ctx, r.chatID, "That does not look like a phone number. Send digits only, e.g. 998901234567:",
			contactKeyboard(labelSkip))
		return nil
	}
	for _, p := range sess.Data.Phones {
		if p == phone {
			b.send(ctx, r.chatID, "This number is already added.", phoneLoopKeyboard())
			return nil
		}
	}

	sess.Data.Phones = append(sess.Data.Phones, phone)
	if err := b.sessions.Set(ctx, r.user.ID, sess); err != nil {
		return err
	}
	b.send(ctx, r.chatID, fmt.Sprintf("✅ Saved %s. Add another number or finish.", b.phones.Display(phone)),
		phoneLoopKeyboard())
	return nil
}

func (b *Bot) askRegConfirm(ctx context.Context, r *request, sess *session.Session) error {
	sess.State = session.StateRegConfirm
	if err := b.sessions.Set(ctx, r.user.ID, sess); err != nil {
		return err
	}

	phones := "not provided"
	if len(sess.Data.Phones) > 0 {
		shown := make([]string, 0, len(sess.Data.Phones))
		for _, p := range sess.Data.Phones {
			shown = append(shown, b.phones.Display(p))
		}
		phones = strings.Join(shown, ", ")
	}
	b.send(ctx, r.chatID, fmt.Sprintf("<b>Check your details</b>\n\n🏪 Store: %s\n📞 Phones: %s\n\nConfirm registration?",
		escape(sess.Data.StoreName), escape(phones)), confirmKeyboard())
	return nil
}

func (b *Bot) onRegConfirm(ctx context.Context, r *request, sess *session.Session) error {
	if r.text() != labelConfirm {
		b.send(ctx, r.chatID, "Press Confirm or Cancel.", confirmKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	acc, err := b.ledger.RegisterStore(ctx, r.profile(), sess.Data.StoreName, sess.Data.Phones)
	switch {
	case errors.Is(err, models.ErrBlocked):
		b.send(ctx, r.chatID, textBlocked, nil)
		return nil
	case errors.Is(err, models.ErrTenantNameTaken):
		b.send(ctx, r.chatID, "This store name was taken in the meantime. Please register again.", mainKeyboard(r.persona))
		return nil
	case err != nil:
		return err
	}

	r.logger.Info("Store registered", zap.String("store_name", acc.TenantName))
	if err := b.refreshPersona(ctx, r); err != nil {
		return err
	}
	return b.showMainMenu(ctx, r, fmt.Sprintf("🎉 Store <b>%s</b> is registered. You are the owner.", escape(acc.TenantName)))
}

func (b *Bot) askCustomerPhone(ctx context.Context, r *request) error {
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateCustomerPhone, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "📱 Share your contact or type your phone number so stores can find your debts:", contactKeyboard())
	return nil
}

func (b *Bot) onCustomerPhone(ctx context.Context, r *request) error {
	phone, ok := b.phoneInput(r)
	if !ok {
		b.send(ctx, r.chatID, "That does not look like a phone number. Try again:", contactKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	_, linked, err := b.ledger.RegisterCustomer(ctx, r.profile(), phone)
	switch {
	case errors.Is(err, models.ErrBlocked):
		b.send(ctx, r.chatID, textBlocked, nil)
		return nil
	case errors.Is(err, models.ErrAlreadyStaff):
		b.send(ctx, r.chatID, "You are already registered as a seller.", mainKeyboard(r.persona))
		return nil
	case err != nil:
		return err
	}

	if err := b.refreshPersona(ctx, r); err != nil {
		return err
	}
	text := "✅ You are registered as a buyer."
	if linked > 0 {
		text += fmt.Sprintf("\nFound your records in %d store ledger(s).", linked)
	}
	return b.showMainMenu(ctx, r, text)
}
