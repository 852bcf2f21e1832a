package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/notify"
	"github.com/nasiyabot/backend/internal/services"
	"github.com/nasiyabot/backend/internal/session"
	"github.com/nasiyabot/backend/internal/telegram"
	"go.uber.org/zap"
)

const (
	textFailure      = "⚠️ Something went wrong. Please try again."
	textBlocked      = "⛔️ Your account is blocked. Contact the administrator."
	textStoreBlocked = "⛔️ Your store is not active. Contact the store owner."
	textNoPermission = "⛔️ This action is not available to you."
	textUseMenu      = "Please use the menu buttons."
	textNotFound     = "Customer not found."
)

// Transport is the chat platform surface the bot talks to.
type Transport interface {
	notify.Messenger
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, alert bool) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup any) error
}

type Config struct {
	AdminContact   string
	BroadcastDelay time.Duration
}

// Services groups the domain services the dispatcher drives.
type Services struct {
	Ledger    *services.LedgerService
	Identity  *services.IdentityService
	Reports   *services.ReportService
	Reminders *services.ReminderService
	Phones    *services.PhoneService
}

// Bot routes updates to conversation flows. HandleUpdate is safe for concurrent use across
// accounts; callers feed one account's updates in order through a telegram.Dispatcher.
type Bot struct {
	transport Transport
	store     *database.Store
	ledger    *services.LedgerService
	identity  *services.IdentityService
	reports   *services.ReportService
	reminders *services.ReminderService
	phones    *services.PhoneService
	validator *services.ValidationHelper
	sessions  session.Store
	notifier  *notify.Notifier
	config    Config
	logger    *zap.Logger
}

func New(transport Transport, store *database.Store, svc Services, sessions session.Store,
	notifier *notify.Notifier, config Config, logger *zap.Logger) *Bot {
	return &Bot{
		transport: transport,
		store:     store,
		ledger:    svc.Ledger,
		identity:  svc.Identity,
		reports:   svc.Reports,
		reminders: svc.Reminders,
		phones:    svc.Phones,
		validator: services.NewValidationHelper(),
		sessions:  sessions,
		notifier:  notifier,
		config:    config,
		logger:    logger.Named("bot"),
	}
}

// request is one update resolved against the account that produced it.
type request struct {
	chatID   int64
	user     telegram.User
	persona  models.Persona
	account  *models.Account
	message  *telegram.Message
	callback *telegram.CallbackQuery
	answered bool
	logger   *zap.Logger
}

func (r *request) profile() services.Profile {
	return services.Profile{ID: r.user.ID, FullName: r.user.FullName(), Username: r.user.Username}
}

// text is the trimmed message text, empty for callbacks and media.
func (r *request) text() string {
	if r.message == nil {
		return ""
	}
	return strings.TrimSpace(r.message.Text)
}

// HandleUpdate processes one update. Failures are logged and reported to the user; a panic in a
// flow never escapes.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	accountID := u.AccountID()
	if accountID == 0 {
		return
	}
	log := b.logger.With(zap.String("trace_id", uuid.NewString()), zap.Int64("account_id", accountID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Update handler panicked", zap.Any("panic", rec), zap.Int64("update_id", u.UpdateID))
		}
	}()

	r := &request{logger: log}
	switch {
	case u.CallbackQuery != nil:
		r.user = u.CallbackQuery.From
		r.callback = u.CallbackQuery
		r.chatID = u.CallbackQuery.From.ID
		if u.CallbackQuery.Message != nil {
			r.chatID = u.CallbackQuery.Message.Chat.ID
		}
	case u.Message != nil:
		r.user = *u.Message.From
		r.message = u.Message
		r.chatID = u.Message.Chat.ID
	default:
		return
	}

	persona, acc, err := b.identity.Persona(ctx, r.user.ID, r.user.Username)
	if err != nil {
		log.Error("Failed to resolve persona", zap.Error(err))
		b.send(ctx, r.chatID, textFailure, nil)
		return
	}
	r.persona, r.account = persona, acc

	if r.callback != nil {
		err = b.handleCallback(ctx, r)
	} else {
		err = b.handleMessage(ctx, r)
	}
	if err != nil {
		log.Error("Update failed", zap.String("persona", persona.String()), zap.Error(err))
		b.send(ctx, r.chatID, textFailure, nil)
	}
}

func (b *Bot) handleMessage(ctx context.Context, r *request) error {
	text := r.text()

	if r.persona == models.PersonaBlocked {
		_ = b.sessions.Clear(ctx, r.user.ID)
		b.send(ctx, r.chatID, textBlocked, telegram.RemoveKeyboard())
		return nil
	}

	if text == labelCancel {
		if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
			return err
		}
		return b.showMainMenu(ctx, r, "Cancelled.")
	}
	if text == "/start" || strings.HasPrefix(text, "/start ") {
		if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
			return err
		}
		return b.start(ctx, r)
	}
	if action := b.menuAction(r.persona, text); action != nil {
		if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
			return err
		}
		return action(ctx, r)
	}

	sess, err := b.sessions.Get(ctx, r.user.ID)
	if errors.Is(err, session.ErrNoSession) {
		return b.showMainMenu(ctx, r, textUseMenu)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	return b.handleState(ctx, r, sess)
}

type action func(ctx context.Context, r *request) error

// menuAction maps a reply keyboard label to its action for the persona, or nil.
func (b *Bot) menuAction(p models.Persona, text string) action {
	switch p {
	case models.PersonaUnregistered:
		switch text {
		case labelSeller:
			return b.chooseShop
		case labelBuyer:
			return b.askCustomerPhone
		case labelNewStore:
			return b.askStoreName
		case labelBack:
			return b.backToMain
		}
	case models.PersonaCustomer:
		switch text {
		case labelMyDebts, labelRefresh:
			return b.showMyDebts
		}
	case models.PersonaTenantStaff, models.PersonaTenantOwner:
		if a := b.ledgerAction(text); a != nil {
			return a
		}
		if p == models.PersonaTenantOwner {
			switch text {
			case labelCabinet:
				return b.showCabinet
			case labelStaffList:
				return b.showStaff
			case labelAddStaff:
				return b.askStaffPhone
			case labelEditStore:
				return b.showStoreEditor
			case labelHelp:
				return b.showHelp
			}
		}
	case models.PersonaSuperadmin:
		switch text {
		case labelSellers:
			return b.showSellers
		case labelBuyers:
			return b.showBuyers
		case labelBlockSection:
			return b.showBlockMenu
		case labelBlockedList:
			return b.showBlocked
		case labelExport:
			return b.exportAll
		case labelMessageSeller:
			return b.pickSeller
		case labelBroadcast:
			return b.askBroadcast
		}
		return b.ledgerAction(text)
	}
	return nil
}

// ledgerAction maps the labels shared by everyone who works a ledger: staff, owners and
// superadmins on their platform store.
func (b *Bot) ledgerAction(text string) action {
	switch text {
	case labelAddCustomer:
		return b.askCustomerName
	case labelSearch:
		return b.askSearch
	case labelDebt:
		return b.pickForDebt
	case labelPayment:
		return b.pickForPayment
	case labelMessageDebtor:
		return b.pickDebtor
	case labelReports:
		return b.showReportsMenu
	case labelWeekly:
		return b.reportFor(services.PeriodWeek)
	case labelMonthly:
		return b.reportFor(services.PeriodMonth)
	case labelFull:
		return b.reportFor(services.PeriodAll)
	case labelStats:
		return b.showStats
	case labelMembers:
		return b.showMembers
	case labelBalance:
		return b.pickForCheck
	case labelBack:
		return b.backToMain
	}
	return nil
}

// handleState feeds free input to the pending step. Staff steps re-check access first, so an
// account blocked mid-flow is stopped before any side effect.
func (b *Bot) handleState(ctx context.Context, r *request, sess *session.Session) error {
	switch sess.State {
	case session.StateStoreName:
		return b.onStoreName(ctx, r, sess)
	case session.StateStorePhone:
		return b.onStorePhone(ctx, r, sess)
	case session.StateRegConfirm:
		return b.onRegConfirm(ctx, r, sess)
	case session.StateCustomerPhone:
		return b.onCustomerPhone(ctx, r)
	case session.StateSellerMessage:
		if !b.requireSuperadmin(ctx, r) {
			return b.sessions.Clear(ctx, r.user.ID)
		}
		return b.onSellerMessage(ctx, r, sess)
	case session.StateBroadcast:
		if !b.requireSuperadmin(ctx, r) {
			return b.sessions.Clear(ctx, r.user.ID)
		}
		return b.onBroadcast(ctx, r)
	}

	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		if clearErr := b.sessions.Clear(ctx, r.user.ID); clearErr != nil && err == nil {
			err = clearErr
		}
		return err
	}

	switch sess.State {
	case session.StateCustomerName:
		return b.onCustomerName(ctx, r, sess)
	case session.StateCustomerPhoneNew:
		return b.onNewCustomerPhone(ctx, r, tenant, sess)
	case session.StateDebtAmount, session.StatePayAmount:
		return b.onAmount(ctx, r, sess)
	case session.StateDebtDesc, session.StatePayDesc:
		return b.onDescription(ctx, r, tenant, sess)
	case session.StateSearch:
		return b.onSearch(ctx, r, tenant)
	case session.StateDebtorMessage:
		return b.onDebtorMessage(ctx, r, tenant, sess)
	case session.StateEditCustomerName:
		return b.onEditCustomerName(ctx, r, tenant, sess)
	}

	if !b.requireOwner(ctx, r) {
		return b.sessions.Clear(ctx, r.user.ID)
	}
	switch sess.State {
	case session.StateEditStoreName:
		return b.onEditStoreName(ctx, r)
	case session.StateEditStorePhone:
		return b.onEditStorePhone(ctx, r)
	case session.StateStaffPhone:
		return b.onStaffPhone(ctx, r, tenant)
	}

	r.logger.Warn("Unknown session state", zap.String("state", string(sess.State)))
	if err := b.sessions.Clear(ctx, r.user.ID); err != nil {
		return err
	}
	return b.showMainMenu(ctx, r, textUseMenu)
}

// parseCallback splits "<action>_<id>" at the last underscore. Actions without an id return 0.
func parseCallback(data string) (string, int64) {
	i := strings.LastIndex(data, "_")
	if i < 0 {
		return data, 0
	}
	id, err := strconv.ParseInt(data[i+1:], 10, 64)
	if err != nil {
		return data, 0
	}
	return data[:i], id
}

func callbackData(action string, id int64) string {
	return action + "_" + strconv.FormatInt(id, 10)
}

func (b *Bot) handleCallback(ctx context.Context, r *request) error {
	err := b.dispatchCallback(ctx, r)
	if !r.answered {
		b.answer(ctx, r, "", false)
	}
	return err
}

func (b *Bot) dispatchCallback(ctx context.Context, r *request) error {
	action, id := parseCallback(r.callback.Data)
	r.logger.Debug("Callback received", zap.String("action", action), zap.Int64("id", id))

	if r.persona == models.PersonaBlocked {
		b.answer(ctx, r, textBlocked, true)
		return nil
	}

	switch action {
	case services.CallbackNotifyAll:
		return b.onNotifyAll(ctx, r)
	case cbPreBlock:
		return b.onPreBlock(ctx, r, id)
	case cbDoBlock:
		return b.onDoBlock(ctx, r, id)
	case cbCancelBlock:
		return b.onCancelBlock(ctx, r)
	case cbUnblock:
		return b.onUnblock(ctx, r, id)
	case cbMsgSeller:
		return b.onPickSeller(ctx, r, id)
	case cbKick:
		return b.onKick(ctx, r, id)
	case cbStoreName:
		return b.onStoreEditChoice(ctx, r, session.StateEditStoreName, "Send the new store name:")
	case cbStorePhone:
		return b.onStoreEditChoice(ctx, r, session.StateEditStorePhone, "Send the new store phone or share a contact:")
	}

	tenant, ok, err := b.requireStaff(ctx, r)
	if err != nil || !ok {
		return err
	}
	customer, err := b.store.GetTenantCustomer(ctx, tenant.OwnerID, id)
	if errors.Is(err, models.ErrNotFound) {
		b.answer(ctx, r, textNotFound, false)
		return nil
	}
	if err != nil {
		return err
	}

	switch action {
	case cbDebt:
		return b.startAmount(ctx, r, session.StateDebtAmount, customer)
	case cbPay:
		return b.startAmount(ctx, r, session.StatePayAmount, customer)
	case cbCheck:
		return b.showCard(ctx, r, customer)
	case cbMember:
		return b.showMember(ctx, r, customer)
	case cbEditName:
		return b.startEditCustomerName(ctx, r, customer)
	case cbDelete:
		return b.onDeleteCustomer(ctx, r, tenant, customer)
	case cbMessage:
		return b.startDebtorMessage(ctx, r, customer)
	}
	return nil
}

// requireStaff resolves the tenant of a staff account. It replies with the rejection itself and
// returns ok false when the account may not act on a ledger.
func (b *Bot) requireStaff(ctx context.Context, r *request) (services.Tenant, bool, error) {
	switch {
	case r.persona == models.PersonaBlocked:
		b.reject(ctx, r, textBlocked)
		return services.Tenant{}, false, nil
	case r.persona == models.PersonaSuperadmin:
		if r.account == nil {
			acc, err := b.ledger.EnsureSuperadmin(ctx, r.profile())
			if err != nil {
				return services.Tenant{}, false, err
			}
			r.account = acc
		}
	case !r.persona.IsStaff():
		b.reject(ctx, r, textNoPermission)
		return services.Tenant{}, false, nil
	}

	tenant, ok, err := b.identity.ResolveTenant(ctx, r.user.ID)
	if err != nil {
		return services.Tenant{}, false, fmt.Errorf("resolve tenant: %w", err)
	}
	if !ok {
		b.reject(ctx, r, textStoreBlocked)
		return services.Tenant{}, false, nil
	}
	return tenant, true, nil
}

// requireOwner admits tenant owners and superadmins, who own their platform store.
func (b *Bot) requireOwner(ctx context.Context, r *request) bool {
	if r.persona != models.PersonaTenantOwner && r.persona != models.PersonaSuperadmin {
		b.reject(ctx, r, textNoPermission)
		return false
	}
	return true
}

func (b *Bot) requireSuperadmin(ctx context.Context, r *request) bool {
	if r.persona != models.PersonaSuperadmin {
		b.reject(ctx, r, textNoPermission)
		return false
	}
	return true
}

// reject answers a callback with an alert, or a message with text.
func (b *Bot) reject(ctx context.Context, r *request, text string) {
	if r.callback != nil {
		b.answer(ctx, r, text, true)
		return
	}
	b.send(ctx, r.chatID, text, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) {
	_ = b.notifier.Notify(ctx, chatID, text, markup)
}

func (b *Bot) answer(ctx context.Context, r *request, text string, alert bool) {
	if r.callback == nil {
		return
	}
	r.answered = true
	if err := b.transport.AnswerCallbackQuery(ctx, r.callback.ID, text, alert); err != nil {
		r.logger.Debug("answerCallbackQuery failed", zap.Error(err))
	}
}

// edit replaces the text of the message a callback came from.
func (b *Bot) edit(ctx context.Context, r *request, text string) {
	if r.callback == nil || r.callback.Message == nil {
		b.send(ctx, r.chatID, text, nil)
		return
	}
	if err := b.transport.EditMessageText(ctx, r.chatID, r.callback.Message.MessageID, text, nil); err != nil {
		r.logger.Debug("editMessageText failed", zap.Error(err))
	}
}

func (b *Bot) start(ctx context.Context, r *request) error {
	switch {
	case r.persona == models.PersonaSuperadmin:
		acc, err := b.ledger.EnsureSuperadmin(ctx, r.profile())
		if err != nil {
			return err
		}
		r.account = acc
	case r.account != nil:
		if err := b.store.TouchProfile(ctx, r.user.ID, r.user.FullName(), r.user.Username); err != nil {
			r.logger.Warn("Failed to refresh profile", zap.Error(err))
		}
	}
	return b.showMainMenu(ctx, r, b.greeting(r))
}

func (b *Bot) greeting(r *request) string {
	switch r.persona {
	case models.PersonaSuperadmin:
		return "👑 <b>Administrator panel</b>"
	case models.PersonaTenantOwner, models.PersonaTenantStaff:
		return fmt.Sprintf("🏪 <b>%s</b>\n\nChoose an action:", escape(r.account.TenantName))
	case models.PersonaCustomer:
		return "🛒 <b>Buyer menu</b>\n\nHere you can see your debts in every store."
	case models.PersonaBlocked:
		return textBlocked
	default:
		return "👋 <b>Welcome!</b>\n\nThis bot keeps store credit ledgers. Who are you?"
	}
}

func (b *Bot) showMainMenu(ctx context.Context, r *request, text string) error {
	b.send(ctx, r.chatID, text, mainKeyboard(r.persona))
	return nil
}

func (b *Bot) backToMain(ctx context.Context, r *request) error {
	return b.showMainMenu(ctx, r, "Main menu.")
}

// refreshPersona re-resolves the account after a flow changed its role.
func (b *Bot) refreshPersona(ctx context.Context, r *request) error {
	persona, acc, err := b.identity.Persona(ctx, r.user.ID, r.user.Username)
	if err != nil {
		return err
	}
	r.persona, r.account = persona, acc
	return nil
}
