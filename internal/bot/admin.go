package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/session"
	"github.com/nasiyabot/backend/internal/telegram"
	"go.uber.org/zap"
)

// messageLimit keeps long listings under the platform's 4096 character cap.
const messageLimit = 4000

// chunkText splits text on line boundaries into parts of at most limit bytes.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			n := cutPoint(line, limit)
			chunks = append(chunks, line[:n])
			line = line[n:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// cutPoint returns where to split an over-long line: at most limit bytes, on a rune boundary,
// and before an HTML tag or entity that would otherwise be cut in half.
func cutPoint(line string, limit int) int {
	n := limit
	for n > 0 && !utf8.RuneStart(line[n]) {
		n--
	}
	head := line[:n]
	if i := strings.LastIndexByte(head, '<'); i > 0 && i > strings.LastIndexByte(head, '>') {
		n = i
	} else if i := strings.LastIndexByte(head, '&'); i > 0 && i > strings.LastIndexByte(head, ';') {
		n = i
	}
	if n == 0 {
		// A single rune wider than limit; emit it whole.
		_, size := utf8.DecodeRuneInString(line)
		n = size
	}
	return n
}

// sellers lists tenant owners, leaving out the superadmins' own platform accounts.
func (b *Bot) sellers(ctx context.Context) ([]models.Account, error) {
	owners, err := b.store.ListTenantOwners(ctx)
	if err != nil {
		return nil, err
	}
	out := owners[:0]
	for _, o := range owners {
		if !b.identity.IsSuperadmin(o.ID, o.Username) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (b *Bot) showSellers(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	owners, err := b.sellers(ctx)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		b.send(ctx, r.chatID, "No sellers yet.", superadminKeyboard())
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏪 <b>Sellers: %d</b>\n\n", len(owners))
	rows := make([][]telegram.InlineKeyboardButton, 0, len(owners))
	for _, o := range owners {
		fmt.Fprintf(&sb, "• <b>%s</b>: %s %s, since %s\n", escape(o.TenantName), escape(o.FullName),
			b.phones.Display(o.Phone), b.reports.LocalTime(o.CreatedAt))
		rows = append(rows, []telegram.InlineKeyboardButton{
			telegram.Button("⛔️ Block "+o.TenantName, callbackData(cbPreBlock, o.ID)),
		})
	}
	chunks := chunkText(sb.String(), messageLimit)
	for i, c := range chunks {
		var markup any
		if i == len(chunks)-1 {
			markup = telegram.Inline(rows...)
		}
		b.send(ctx, r.chatID, c, markup)
	}
	return nil
}

func (b *Bot) showBuyers(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	buyers, err := b.store.ListAccountsByRole(ctx, models.RoleCustomer)
	if err != nil {
		return err
	}
	if len(buyers) == 0 {
		b.send(ctx, r.chatID, "No buyers yet.", superadminKeyboard())
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 <b>Buyers: %d</b>\n\n", len(buyers))
	for _, a := range buyers {
		handle := ""
		if a.Username != "" {
			handle = " @" + a.Username
		}
		fmt.Fprintf(&sb, "• %s%s %s\n", escape(a.FullName), escape(handle), b.phones.Display(a.Phone))
	}
	for _, c := range chunkText(sb.String(), messageLimit) {
		b.send(ctx, r.chatID, c, nil)
	}
	return nil
}

func (b *Bot) showBlockMenu(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	b.send(ctx, r.chatID, "🚫 <b>Block section</b>\n\nBlock sellers from the sellers list.", blockKeyboard())
	return nil
}

func (b *Bot) showBlocked(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	blocked, err := b.store.ListAccountsByRole(ctx, models.RoleBlocked)
	if err != nil {
		return err
	}
	if len(blocked) == 0 {
		b.send(ctx, r.chatID, "Nobody is blocked.", blockKeyboard())
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⛔️ <b>Blocked: %d</b>\n\n", len(blocked))
	rows := make([][]telegram.InlineKeyboardButton, 0, len(blocked))
	for _, a := range blocked {
		label := a.FullName
		if a.TenantName != "" {
			label = a.TenantName
		}
		fmt.Fprintf(&sb, "• %s (%s)\n", escape(label), b.phones.Display(a.Phone))
		rows = append(rows, []telegram.InlineKeyboardButton{
			telegram.Button("✅ Unblock "+label, callbackData(cbUnblock, a.ID)),
		})
	}
	b.send(ctx, r.chatID, sb.String(), telegram.Inline(rows...))
	return nil
}

func (b *Bot) onPreBlock(ctx context.Context, r *request, id int64) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	if id == r.user.ID {
		b.answer(ctx, r, "You cannot block yourself.", true)
		return nil
	}
	target, err := b.store.GetAccount(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		b.answer(ctx, r, "Account not found.", true)
		return nil
	}
	if err != nil {
		return err
	}

	b.send(ctx, r.chatID, fmt.Sprintf("Block <b>%s</b> (%s)?", escape(target.TenantName), escape(target.FullName)),
		telegram.Inline([]telegram.InlineKeyboardButton{
			telegram.Button("⛔️ Block", callbackData(cbDoBlock, id)),
			telegram.Button("Cancel", cbCancelBlock),
		}))
	return nil
}

func (b *Bot) onDoBlock(ctx context.Context, r *request, id int64) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	if id == r.user.ID {
		b.answer(ctx, r, "You cannot block yourself.", true)
		return nil
	}
	err := b.ledger.BlockAccount(ctx, r.user.ID, id)
	if errors.Is(err, models.ErrNotFound) {
		b.answer(ctx, r, "Account not found.", true)
		return nil
	}
	if err != nil {
		return err
	}
	_ = b.sessions.Clear(ctx, id)

	r.logger.Info("Account blocked by superadmin", zap.Int64("target_id", id))
	b.send(ctx, id, textBlocked, telegram.RemoveKeyboard())
	b.edit(ctx, r, "⛔️ Blocked.")
	return nil
}

func (b *Bot) onCancelBlock(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	if r.callback.Message == nil {
		return nil
	}
	if err := b.transport.DeleteMessage(ctx, r.chatID, r.callback.Message.MessageID); err != nil {
		r.logger.Debug("deleteMessage failed", zap.Error(err))
		b.edit(ctx, r, "Cancelled.")
	}
	return nil
}

func (b *Bot) onUnblock(ctx context.Context, r *request, id int64) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	err := b.ledger.UnblockAccount(ctx, r.user.ID, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		b.answer(ctx, r, "Account not found.", true)
		return nil
	case errors.Is(err, models.ErrNotBlocked):
		b.answer(ctx, r, "This account is not blocked.", true)
		return nil
	case err != nil:
		return err
	}
	b.send(ctx, id, "✅ Your account has been unblocked. Press /start to continue.", customerKeyboard())
	b.edit(ctx, r, "✅ Unblocked.")
	return nil
}

func (b *Bot) exportAll(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	data, err := b.reports.DumpWorkbook(ctx)
	if err != nil {
		return err
	}
	name := "export_" + b.store.Now().Format("20060102_1504") + ".xlsx"
	_ = b.notifier.SendDocument(ctx, r.chatID, name, data, "📊 Full export")
	return nil
}

func (b *Bot) pickSeller(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	owners, err := b.sellers(ctx)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		b.send(ctx, r.chatID, "No sellers yet.", superadminKeyboard())
		return nil
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(owners))
	for _, o := range owners {
		rows = append(rows, []telegram.InlineKeyboardButton{
			telegram.Button(o.TenantName+" | "+o.FullName, callbackData(cbMsgSeller, o.ID)),
		})
	}
	b.send(ctx, r.chatID, "✉️ Choose a seller:", telegram.Inline(rows...))
	return nil
}

func (b *Bot) onPickSeller(ctx context.Context, r *request, id int64) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateSellerMessage, session.Data{TargetID: id})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "Send the message (text, voice, photo or video):", cancelKeyboard())
	return nil
}

func (b *Bot) onSellerMessage(ctx context.Context, r *request, sess *session.Session) error {
	if !deliverable(r.message) {
		b.send(ctx, r.chatID, "Send text, voice, a photo or a video:", cancelKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}
	if err := b.deliver(ctx, r, sess.Data.TargetID, "✉️ <b>Message from the administrator:</b>"); err != nil {
		return b.showMainMenu(ctx, r, "⚠️ The message could not be delivered.")
	}
	return b.showMainMenu(ctx, r, "✅ Message sent.")
}

func (b *Bot) askBroadcast(ctx context.Context, r *request) error {
	if !b.requireSuperadmin(ctx, r) {
		return nil
	}
	if err := b.sessions.Set(ctx, r.user.ID, session.New(session.StateBroadcast, session.Data{})); err != nil {
		return err
	}
	b.send(ctx, r.chatID, "📢 Send the message to broadcast to every user (text, photo or video):", cancelKeyboard())
	return nil
}

func (b *Bot) onBroadcast(ctx context.Context, r *request) error {
	if !deliverable(r.message) {
		b.send(ctx, r.chatID, "Send text, a photo or a video:", cancelKeyboard())
		return nil
	}
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}

	accounts, err := b.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != r.user.ID {
			ids = append(ids, a.ID)
		}
	}
	sent := b.notifier.CopyEach(ctx, ids, r.chatID, r.message.MessageID, b.config.BroadcastDelay)
	r.logger.Info("Broadcast finished", zap.Int("recipients", len(ids)), zap.Int("delivered", sent))
	return b.showMainMenu(ctx, r, fmt.Sprintf("📢 Delivered to %d of %d users.", sent, len(ids)))
}
