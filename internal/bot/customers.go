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
	"go.uber.org/zap"
)

// pickerLimit caps inline customer lists; larger ledgers are reached through search.
const pickerLimit = 50

func (b *Bot) customerButton(c models.Customer) string {
	marker := "⚪️"
	if c.IsLinked() {
		marker = "🟢"
	}
	return fmt.Sprintf("%s %s | %s (%s)", marker, c.FullName, b.phones.Display(c.Phone), services.FormatAmount(c.Balance))
}

func (b *Bot) customerList(action string, list []models.Customer) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(list))
	for i, c := range list {
		if i == pickerLimit {
			break
		}
		rows = append(rows, []telegram.InlineKeyboardButton{telegram.Button(b.customerButton(c), callbackData(action, c.ID))})
	}
	return telegram.Inline(rows...)
}

func (b *Bot) pickCustomer(ctx context.Context, r *request, action, prompt string) error {
	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		return err
	}
	list, err := b.store.ListCustomers(ctx, tenant.OwnerID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		b.send(ctx, r.chatID, "No customers yet. Add one with "+labelAddCustomer+".", nil)
		return nil
	}
	if len(list) > pickerLimit {
		prompt += fmt.Sprintf("\n\nShowing the first %d of %d. Use search to find the rest.", pickerLimit, len(list))
	}
	b.send(ctx, r.chatID, prompt, b.customerList(action, list))
	return nil
}

func (b *Bot) pickForDebt(ctx context.Context, r *request) error {
	return b.pickCustomer(ctx, r, cbDebt, "💸 Choose a customer to record a debt:")
}

func (b *Bot) pickForPayment(ctx context.Context, r *request) error {
	return b.pickCustomer(ctx, r, cbPay, "💵 Choose a customer who is paying:")
}

func (b *Bot) pickForCheck(ctx context.Context, r *request) error {
	return b.pickCustomer(ctx, r, cbCheck, "💰 Choose a customer:")
}

func (b *Bot) showMembers(ctx context.Context, r *request) error {
	return b.pickCustomer(ctx, r, cbMember, "👥 Your customers:")
}

func (b *Bot) askCustomerName(ctx context.Context, r *request) error {
	if _, ok, err := b.requireStaff(ctx, r); err != nil || !ok {
		return err
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateCustomerName, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Enter the customer's full name:", cancelKeyboard())
	return nil
}

func (b *Bot) onCustomerName(ctx context.Context, r *request, sess *session.Session) error {
	name := r.text()
	if !b.validator.ValidCustomerName(name) {
		b.send(ctx, r.chatID, "Enter a name of up to 128 characters:", cancelKeyboard())
		return nil
	}
	sess.State = session.StateCustomerPhoneNew
	sess.Data.Name = name
	if err := b.sessions.Set(ctx, r.user.ID, sess); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Enter the customer's phone number:", contactKeyboard())
	return nil
}

func (b *Bot) onNewCustomerPhone(ctx context.Context, r *request, tenant services.Tenant, sess *session.Session) error {
	phone, ok := b.phoneInput(r)
	if !ok {
		b.send(ctx, r.chatID, "Send digits only, e.g. 998901234567:", contactKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	c, err := b.ledger.CreateCustomer(ctx, r.user.ID, tenant.OwnerID, sess.Data.Name, phone)
	if errors.Is(err, models.ErrDuplicatePhone) {
		return b.showMainMenu(ctx, r, "⚠️ A customer with this phone already exists in your store.")
	}
	if err != nil {
		return err
	}

	text := fmt.Sprintf("✅ Customer <b>%s</b> added.", escape(c.FullName))
	if c.IsLinked() {
		text += "\nThey already use the bot and will receive notices."
	}
	return b.showMainMenu(ctx, r, text)
}

func (b *Bot) startAmount(ctx context.Context, r *request, state session.State, c *models.Customer) error {
	if err := b.sessions.Set(ctx, r.user.ID, session.New(state, session.Data{CustomerID: c.ID})); err != nil {
		return err
	}
	verb := "debt"
	if state == session.StatePayAmount {
		verb = "payment"
	}
	b.send(ctx, r.chatID, fmt.Sprintf("👤 <b>%s</b>\nBalance: %s\n\nEnter the %s amount:",
		escape(c.FullName), services.FormatAmount(c.Balance), verb), cancelKeyboard())
	return nil
}

func (b *Bot) onAmount(ctx context.Context, r *request, sess *session.Session) error {
	amount, err := services.ParseAmount(r.text())
	if err != nil {
		b.send(ctx, r.chatID, "Enter a positive number, e.g. 150000:", cancelKeyboard())
		return nil
	}

	sess.Data.Amount = amount
	if sess.State == session.StateDebtAmount {
		sess.State = session.StateDebtDesc
	} else {
		sess.State = session.StatePayDesc
	}
	if err := b.sessions.Set(ctx, r.user.ID, sess); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Add a description, or send - to skip:", cancelKeyboard())
	return nil
}

func (b *Bot) onDescription(ctx context.Context, r *request, tenant services.Tenant, sess *session.Session) error {
	desc := r.text()
	if desc == "-" {
		desc = ""
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	if _, err := b.store.GetTenantCustomer(ctx, tenant.OwnerID, sess.Data.CustomerID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return b.showMainMenu(ctx, r, textNotFound)
		}
		return err
	}

	debt := sess.State == session.StateDebtDesc
	var res *models.LedgerResult
	var err error
	if debt {
		res, err = b.ledger.RecordDebt(ctx, r.user.ID, sess.Data.CustomerID, sess.Data.Amount, desc)
	} else {
		res, err = b.ledger.RecordPayment(ctx, r.user.ID, sess.Data.CustomerID, sess.Data.Amount, desc)
	}
	if errors.Is(err, models.ErrNotFound) {
		return b.showMainMenu(ctx, r, textNotFound)
	}
	if err != nil {
		return err
	}

	title, notice := "✅ Debt recorded", "🧾 <b>New debt at %s</b>"
	if !debt {
		title, notice = "✅ Payment accepted", "💵 <b>Payment received at %s</b>"
	}
	amount := services.FormatAmount(sess.Data.Amount)
	balance := services.FormatAmount(res.NewBalance)

	if res.Customer.IsLinked() {
		text := fmt.Sprintf(notice, escape(tenant.Name)) + "\n\nAmount: " + amount
		if desc != "" {
			text += "\nDescription: " + escape(desc)
		}
		text += "\nBalance: <b>" + balance + "</b>"
		if err := b.notifier.Notify(ctx, *res.Customer.AccountID, text, nil); err != nil {
			r.logger.Debug("Customer notice not delivered", zap.Int64("customer_id", res.Customer.ID))
		}
	}

	return b.showMainMenu(ctx, r, fmt.Sprintf("%s\n\n👤 %s\nAmount: %s\nBalance: <b>%s</b>",
		title, escape(res.Customer.FullName), amount, balance))
}

func (b *Bot) askSearch(ctx context.Context, r *request) error {
	if _, ok, err := b.requireStaff(ctx, r); err != nil || !ok {
		return err
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateSearch, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "🔍 Enter part of a name or phone number:", cancelKeyboard())
	return nil
}

func (b *Bot) onSearch(ctx context.Context, r *request, tenant services.Tenant) error {
	query := r.text()
	if query == "" {
		b.send(ctx, r.chatID, "Send the search text:", cancelKeyboard())
		return nil
	}
	if digits := b.phones.Clean(query); len(digits) == len(strings.ReplaceAll(query, " ", "")) && digits != "" {
		query = digits
	}

	found, err := b.store.SearchCustomers(ctx, tenant.OwnerID, query)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		b.send(ctx, r.chatID, "Nothing found. Try another query:", cancelKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	if err := b.showMainMenu(ctx, r, fmt.Sprintf("🔍 Found %d customer(s).", len(found))); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Choose a customer:", b.customerList(cbCheck, found))
	return nil
}

func (b *Bot) statusLine(balance float64) string {
	switch {
	case balance > 0:
		return "🔴 Debtor"
	case balance < 0:
		return "🟢 In credit"
	default:
		return "✅ Settled"
	}
}

func (b *Bot) historyLines(ctx context.Context, customerID int64, limit int) (string, error) {
	txns, err := b.store.RecentTransactions(ctx, customerID, limit)
	if err != nil {
		return "", err
	}
	if len(txns) == 0 {
		return "No entries yet.", nil
	}
	var sb strings.Builder
	for _, t := range txns {
		sign := "+"
		if t.Amount < 0 {
			sign = "−"
		}
		amount := t.Amount
		if amount < 0 {
			amount = -amount
		}
		fmt.Fprintf(&sb, "%s  %s%s", b.reports.LocalTime(t.CreatedAt), sign, services.FormatAmount(amount))
		if t.Description != "" {
			sb.WriteString("  " + escape(t.Description))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) showCard(ctx context.Context, r *request, c *models.Customer) error {
	history, err := b.historyLines(ctx, c.ID, 5)
	if err != nil {
		return err
	}
	linked := "not joined the bot"
	if c.IsLinked() {
		linked = "receives notices"
	}
	text := fmt.Sprintf("👤 <b>%s</b>\n📞 %s\n💰 Balance: <b>%s</b>\nStatus: %s\n🔗 %s\n\n<b>Recent entries</b>\n%s",
		escape(c.FullName), b.phones.Display(c.Phone), services.FormatAmount(c.Balance), b.statusLine(c.Balance),
		linked, history)
	b.send(ctx, r.chatID, text, telegram.Inline([]telegram.InlineKeyboardButton{
		telegram.Button("💸 Debt", callbackData(cbDebt, c.ID)),
		telegram.Button("💵 Payment", callbackData(cbPay, c.ID)),
	}))
	return nil
}

func (b *Bot) showMember(ctx context.Context, r *request, c *models.Customer) error {
	text := fmt.Sprintf("👤 <b>%s</b>\n📞 %s\n💰 Balance: %s",
		escape(c.FullName), b.phones.Display(c.Phone), services.FormatAmount(c.Balance))
	b.send(ctx, r.chatID, text, telegram.Inline([]telegram.InlineKeyboardButton{
		telegram.Button("✏️ Rename", callbackData(cbEditName, c.ID)),
		telegram.Button("🗑 Delete", callbackData(cbDelete, c.ID)),
	}))
	return nil
}

func (b *Bot) startEditCustomerName(ctx context.Context, r *request, c *models.Customer) error {
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateEditCustomerName, session.Data{CustomerID: c.ID})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, fmt.Sprintf("Enter a new name for <b>%s</b>:", escape(c.FullName)), cancelKeyboard())
	return nil
}

func (b *Bot) onEditCustomerName(ctx context.Context, r *request, tenant services.Tenant, sess *session.Session) error {
	name := r.text()
	if !b.validator.ValidCustomerName(name) {
		b.send(ctx, r.chatID, "Enter a name of up to 128 characters:", cancelKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	err := b.ledger.RenameCustomer(ctx, r.user.ID, tenant.OwnerID, sess.Data.CustomerID, name)
	if errors.Is(err, models.ErrNotFound) {
		return b.showMainMenu(ctx, r, textNotFound)
	}
	if err != nil {
		return err
	}
	return b.showMainMenu(ctx, r, fmt.Sprintf("✅ Renamed to <b>%s</b>.", escape(name)))
}

func (b *Bot) onDeleteCustomer(ctx context.Context, r *request, tenant services.Tenant, c *models.Customer) error {
	err := b.ledger.DeleteCustomer(ctx, r.user.ID, tenant.OwnerID, c.ID)
	switch {
	case errors.Is(err, models.ErrOutstandingBalance):
		b.answer(ctx, r, fmt.Sprintf("Balance is %s. Settle it before deleting.", services.FormatAmount(c.Balance)), true)
		return nil
	case errors.Is(err, models.ErrNotFound):
		b.answer(ctx, r, textNotFound, false)
		return nil
	case err != nil:
		return err
	}
	b.edit(ctx, r, fmt.Sprintf("🗑 Customer <b>%s</b> deleted.", escape(c.FullName)))
	return nil
}

func (b *Bot) pickDebtor(ctx context.Context, r *request) error {
	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		return err
	}
	debtors, err := b.store.ListTenantDebtors(ctx, tenant.OwnerID)
	if err != nil {
		return err
	}
	if len(debtors) == 0 {
		b.send(ctx, r.chatID, "No debtors who use the bot.", nil)
		return nil
	}
	b.send(ctx, r.chatID, "✉️ Choose a debtor to message:", b.customerList(cbMessage, debtors))
	return nil
}

func (b *Bot) startDebtorMessage(ctx context.Context, r *request, c *models.Customer) error {
	if !c.IsLinked() {
		b.answer(ctx, r, "This customer has not joined the bot yet.", true)
		return nil
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateDebtorMessage, session.Data{CustomerID: c.ID})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, fmt.Sprintf("Send the message for <b>%s</b> (text, voice, photo or video):", escape(c.FullName)),
		cancelKeyboard())
	return nil
}

func (b *Bot) onDebtorMessage(ctx context.Context, r *request, tenant services.Tenant, sess *session.Session) error {
	if !deliverable(r.message) {
		b.send(ctx, r.chatID, "Send text, voice, a photo or a video:", cancelKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	c, err := b.store.GetTenantCustomer(ctx, tenant.OwnerID, sess.Data.CustomerID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !c.IsLinked()) {
		return b.showMainMenu(ctx, r, textNotFound)
	}
	if err != nil {
		return err
	}

	header := fmt.Sprintf("✉️ <b>Message from %s:</b>", escape(tenant.Name))
	if err := b.deliver(ctx, r, *c.AccountID, header); err != nil {
		return b.showMainMenu(ctx, r, "⚠️ The message could not be delivered.")
	}
	return b.showMainMenu(ctx, r, "✅ Message sent.")
}

func deliverable(m *telegram.Message) bool {
	return m != nil && (strings.TrimSpace(m.Text) != "" || m.HasMedia())
}

// deliver sends the request message to chatID under header. Text is re-sent; media is copied
// with the header as caption.
func (b *Bot) deliver(ctx context.Context, r *request, chatID int64, header string) error {
	m := r.message
	if m.HasMedia() {
		caption := header
		if m.Caption != "" {
			caption += "\n\n" + escape(m.Caption)
		}
		return b.notifier.Copy(ctx, chatID, r.chatID, m.MessageID, caption)
	}
	return b.notifier.Notify(ctx, chatID, header+"\n\n"+escape(m.Text), nil)
}

func (b *Bot) showMyDebts(ctx context.Context, r *request) error {
	debts, err := b.store.ListCustomerDebts(ctx, r.user.ID)
	if err != nil {
		return err
	}
	if len(debts) == 0 {
		b.send(ctx, r.chatID, "No store has recorded anything for you yet.", customerKeyboard())
		return nil
	}

	var total float64
	var sb strings.Builder
	for _, d := range debts {
		total += d.Customer.Balance
		history, err := b.historyLines(ctx, d.Customer.ID, 10)
		if err != nil {
			return err
		}
		contacts := d.ContactPhones
		if len(contacts) == 0 && d.OwnerPhone != "" {
			contacts = []string{d.OwnerPhone}
		}
		shown := make([]string, 0, len(contacts))
		for _, p := range contacts {
			shown = append(shown, b.phones.Display(p))
		}

		fmt.Fprintf(&sb, "🏪 <b>%s</b>\n", escape(d.TenantName))
		if len(shown) > 0 {
			fmt.Fprintf(&sb, "📞 %s\n", strings.Join(shown, ", "))
		}
		fmt.Fprintf(&sb, "💰 Balance: <b>%s</b> (%s)\n%s\n\n",
			services.FormatAmount(d.Customer.Balance), b.statusLine(d.Customer.Balance), history)
	}
	fmt.Fprintf(&sb, "Total: <b>%s</b>", services.FormatAmount(total))

	for _, chunk := range chunkText(sb.String(), messageLimit) {
		b.send(ctx, r.chatID, chunk, customerKeyboard())
	}
	return nil
}
