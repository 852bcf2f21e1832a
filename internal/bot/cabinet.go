package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/services"
	"github.com/nasiyabot/backend/internal/session"
	"github.com/nasiyabot/backend/internal/telegram"
)

func (b *Bot) showReportsMenu(ctx context.Context, r *request) error {
	if _, ok, err := b.requireStaff(ctx, r); err != nil || !ok {
		return err
	}
	b.send(ctx, r.chatID, "📊 Choose a report:", reportsKeyboard())
	return nil
}

func (b *Bot) reportFor(period services.ReportPeriod) action {
	return func(ctx context.Context, r *request) error {
		tenant, ok, err := b.requireStaff(ctx, r)
		if err != nil || !ok {
			return err
		}
		rep, err := b.reports.TenantReport(ctx, tenant.OwnerID, period)
		if err != nil {
			return err
		}
		if rep.Data == nil {
			b.send(ctx, r.chatID, "No entries for this period.", reportsKeyboard())
			return nil
		}
		caption := fmt.Sprintf("📊 <b>%s</b>: %d entries", escape(tenant.Name), rep.Rows)
		_ = b.notifier.SendDocument(ctx, r.chatID, rep.FileName, rep.Data, caption)
		return nil
	}
}

func (b *Bot) showStats(ctx context.Context, r *request) error {
	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		return err
	}
	st, err := b.store.TenantStats(ctx, tenant.OwnerID)
	if err != nil {
		return err
	}
	b.send(ctx, r.chatID, fmt.Sprintf("📈 <b>%s</b>\n\nCustomers: %d\nDebtors: %d\nOutstanding: <b>%s</b>",
		escape(tenant.Name), st.Customers, st.Debtors, services.FormatAmount(st.Outstanding)), reportsKeyboard())
	return nil
}

// requireTenantOwner resolves the tenant of an active owner.
func (b *Bot) requireTenantOwner(ctx context.Context, r *request) (services.Tenant, bool, error) {
	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		return tenant, false, err
	}
	if !b.requireOwner(ctx, r) {
		return tenant, false, nil
	}
	return tenant, true, nil
}

func (b *Bot) showCabinet(ctx context.Context, r *request) error {
	if _, ok, err := b.requireTenantOwner(ctx, r); err != nil || !ok {
		return err
	}
	b.send(ctx, r.chatID, "🗄 <b>Cabinet</b>", cabinetKeyboard())
	return nil
}

func (b *Bot) showStaff(ctx context.Context, r *request) error {
	tenant, ok, err := b.requireTenantOwner(ctx, r)
	if err != nil || !ok {
		return err
	}
	staff, err := b.store.ListTenantStaff(ctx, tenant.Name)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("👥 <b>Staff</b>\n\n")
	var rows [][]telegram.InlineKeyboardButton
	for _, a := range staff {
		if a.IsOwner {
			fmt.Fprintf(&sb, "👑 %s (owner)\n", escape(a.FullName))
			continue
		}
		fmt.Fprintf(&sb, "👤 %s %s\n", escape(a.FullName), b.phones.Display(a.Phone))
		rows = append(rows, []telegram.InlineKeyboardButton{
			telegram.Button("❌ Remove "+a.FullName, callbackData(cbKick, a.ID)),
		})
	}
	if len(rows) == 0 {
		sb.WriteString("\nNo staff members yet.")
		b.send(ctx, r.chatID, sb.String(), cabinetKeyboard())
		return nil
	}
	b.send(ctx, r.chatID, sb.String(), telegram.Inline(rows...))
	return nil
}

func (b *Bot) onKick(ctx context.Context, r *request, id int64) error {
	tenant, ok, err := b.requireTenantOwner(ctx, r)
	if err != nil || !ok {
		return err
	}
	target, err := b.store.GetAccount(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if target == nil || !target.IsStaff() || target.IsOwner || target.TenantName != tenant.Name {
		b.answer(ctx, r, "This account is not on your staff.", true)
		return nil
	}

	if err := b.ledger.DemoteStaff(ctx, r.user.ID, id); err != nil {
		return err
	}
	b.send(ctx, id, fmt.Sprintf("You were removed from the staff of <b>%s</b>.", escape(tenant.Name)), customerKeyboard())
	b.edit(ctx, r, fmt.Sprintf("✅ %s removed from staff.", escape(target.FullName)))
	return nil
}

func (b *Bot) askStaffPhone(ctx context.Context, r *request) error {
	if _, ok, err := b.requireTenantOwner(ctx, r); err != nil || !ok {
		return err
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateStaffPhone, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Send the phone number of the new staff member. They must have opened the bot before.",
		contactKeyboard())
	return nil
}

func (b *Bot) onStaffPhone(ctx context.Context, r *request, tenant services.Tenant) error {
	phone, ok := b.phoneInput(r)
	if !ok {
		b.send(ctx, r.chatID, "Send digits only, e.g. 998901234567:", contactKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	acc, err := b.ledger.PromoteToStaff(ctx, r.user.ID, tenant.Name, phone)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return b.showMainMenu(ctx, r, "No registered user has this phone. Ask them to open the bot and register as a buyer first.")
	case errors.Is(err, models.ErrAlreadyStaff):
		return b.showMainMenu(ctx, r, "This user is already a staff member.")
	case errors.Is(err, models.ErrBlocked):
		return b.showMainMenu(ctx, r, "This user is blocked.")
	case err != nil:
		return err
	}

	b.send(ctx, acc.ID, fmt.Sprintf("🎉 You were added to the staff of <b>%s</b>.", escape(tenant.Name)), staffKeyboard(false))
	return b.showMainMenu(ctx, r, fmt.Sprintf("✅ %s added to staff.", escape(acc.FullName)))
}

func (b *Bot) showStoreEditor(ctx context.Context, r *request) error {
	tenant, ok, err := b.requireTenantOwner(ctx, r)
	if err != nil || !ok {
		return err
	}
	phone := "not set"
	if r.account.Phone != "" {
		phone = b.phones.Display(r.account.Phone)
	}
	b.send(ctx, r.chatID, fmt.Sprintf("🏪 <b>%s</b>\n📞 %s\n\nWhat do you want to change?", escape(tenant.Name), phone),
		telegram.Inline([]telegram.InlineKeyboardButton{
			telegram.Button("📝 Name", cbStoreName),
			telegram.Button("📞 Phone", cbStorePhone),
		}))
	return nil
}

func (b *Bot) onStoreEditChoice(ctx context.Context, r *request, state session.State, prompt string) error {
	if _, ok, err := b.requireTenantOwner(ctx, r); err != nil || !ok {
		return err
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(state, session.Data{})); err != nil {
		return err
	}
	var markup any = cancelKeyboard()
	if state == session.StateEditStorePhone {
		markup = contactKeyboard()
	}
	b.send(ctx, r.chatID, prompt, markup)
	return nil
}

func (b *Bot) onEditStoreName(ctx context.Context, r *request) error {
	name := r.text()
	if !b.validator.ValidStoreName(name) {
		b.send(ctx, r.chatID, "The name must be 3 to 64 characters. Try again:", cancelKeyboard())
		return nil
	}
	err := b.ledger.RenameTenant(ctx, r.account, name)
	if errors.Is(err, models.ErrTenantNameTaken) {
		b.send(ctx, r.chatID, "This store name is already taken. Choose another:", cancelKeyboard())
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}
	return b.showMainMenu(ctx, r, fmt.Sprintf("✅ The store is now called <b>%s</b>.", escape(name)))
}

func (b *Bot) onEditStorePhone(ctx context.Context, r *request) error {
	phone, ok := b.phoneInput(r)
	if !ok {
		b.send(ctx, r.chatID, "Send digits only, e.g. 998901234567:", contactKeyboard())
		return nil
	}
	if err := b.ledger.UpdateContactPhone(ctx, r.user.ID, phone); err != nil {
		return err
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}
	return b.showMainMenu(ctx, r, fmt.Sprintf("✅ Store phone set to %s.", b.phones.Display(phone)))
}

func (b *Bot) showHelp(ctx context.Context, r *request) error {
	text := "ℹ️ <b>Help</b>\n\nRecord debts and payments from the main menu. Customers who open the bot with the same phone see their balance and get notices."
	if b.config.AdminContact != "" {
		text += "\n\nQuestions and subscription: " + escape(b.config.AdminContact)
	}
	b.send(ctx, r.chatID, text, cabinetKeyboard())
	return nil
}

func (b *Bot) onNotifyAll(ctx context.Context, r *request) error {
	tenant, ok, err := b.requireTenantOwner(ctx, r)
	if err != nil || !ok {
		return err
	}
	debtors, err := b.store.ListTenantDebtors(ctx, tenant.OwnerID)
	if err != nil {
		return err
	}
	if len(debtors) == 0 {
		b.answer(ctx, r, "No debtors to notify.", true)
		return nil
	}
	b.answer(ctx, r, "Sending reminders…", false)

	sent, err := b.reminders.RemindTenantDebtors(ctx, tenant.OwnerID, tenant.Name)
	if err != nil {
		return err
	}
	b.send(ctx, r.chatID, fmt.Sprintf("📤 Reminders sent: %d of %d.", sent, len(debtors)), nil)
	return nil
}
