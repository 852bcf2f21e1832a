package bot

import (
	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/telegram"
)

// Reply keyboard labels. Incoming text equal to a label starts the matching action.
const (
	labelCancel = "❌ Cancel"
	labelBack   = "⬅️ Back"

	labelSeller   = "🏪 Seller"
	labelBuyer    = "🛒 Buyer"
	labelNewStore = "➕ New store"

	labelShareContact = "📱 Share contact"
	labelAddPhone     = "➕ Add another phone"
	labelDone         = "✅ Done"
	labelSkip         = "⏭ Skip"
	labelConfirm      = "✅ Confirm"

	labelAddCustomer   = "➕ Add customer"
	labelSearch        = "🔍 Search customer"
	labelDebt          = "💸 Record debt"
	labelPayment       = "💵 Accept payment"
	labelMessageDebtor = "✉️ Message a debtor"
	labelReports       = "📊 Reports"
	labelMembers       = "👥 Members"
	labelBalance       = "💰 Check balance"
	labelCabinet       = "🗄 Cabinet"

	labelWeekly  = "📅 Weekly report"
	labelMonthly = "🗓 Monthly report"
	labelFull    = "📦 Full report"
	labelStats   = "📈 Statistics"

	labelStaffList = "👤 Staff list"
	labelAddStaff  = "➕ Add staff"
	labelEditStore = "✏️ Edit store info"
	labelHelp      = "ℹ️ Help"

	labelSellers       = "🏪 Sellers"
	labelBuyers        = "🛒 Buyers"
	labelBlockSection  = "🚫 Block section"
	labelBlockedList   = "⛔️ Blocked sellers"
	labelMessageSeller = "✉️ Message a seller"
	labelBroadcast     = "📢 Broadcast"
	labelExport        = "📊 Export everything"

	labelMyDebts = "📋 My debts"
	labelRefresh = "🔄 Refresh"
)

// Inline callback actions. Parametrised ones carry the target id after an underscore.
const (
	cbDebt        = "debt"
	cbPay         = "pay"
	cbCheck       = "check"
	cbMember      = "member"
	cbEditName    = "editname"
	cbDelete      = "delcust"
	cbMessage     = "msg"
	cbKick        = "kick"
	cbStoreName   = "storename"
	cbStorePhone  = "storephone"
	cbPreBlock    = "preblock"
	cbDoBlock     = "doblock"
	cbCancelBlock = "cancelblock"
	cbUnblock     = "unblock"
	cbMsgSeller   = "msgseller"
)

func roleKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelSeller, labelBuyer))
}

func shopKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelNewStore), telegram.Row(labelBack))
}

func cancelKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelCancel))
}

func contactKeyboard(extra ...string) *telegram.ReplyKeyboardMarkup {
	rows := [][]telegram.KeyboardButton{{telegram.ContactButton(labelShareContact)}}
	if len(extra) > 0 {
		rows = append(rows, telegram.Row(extra...))
	}
	rows = append(rows, telegram.Row(labelCancel))
	return telegram.Keyboard(rows...)
}

func phoneLoopKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelAddPhone), telegram.Row(labelDone), telegram.Row(labelCancel))
}

func confirmKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelConfirm, labelCancel))
}

func staffKeyboard(owner bool) *telegram.ReplyKeyboardMarkup {
	rows := [][]telegram.KeyboardButton{
		telegram.Row(labelAddCustomer, labelSearch),
		telegram.Row(labelDebt, labelPayment),
		telegram.Row(labelMessageDebtor, labelReports),
		telegram.Row(labelMembers, labelBalance),
	}
	if owner {
		rows = append(rows, telegram.Row(labelCabinet))
	}
	return telegram.Keyboard(rows...)
}

func reportsKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(labelWeekly, labelMonthly),
		telegram.Row(labelFull, labelStats),
		telegram.Row(labelBack),
	)
}

func cabinetKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(labelStaffList, labelAddStaff),
		telegram.Row(labelEditStore, labelHelp),
		telegram.Row(labelBack),
	)
}

func superadminKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(labelSellers, labelBuyers),
		telegram.Row(labelBlockSection, labelExport),
		telegram.Row(labelMessageSeller, labelBroadcast),
		telegram.Row(labelAddCustomer, labelSearch),
		telegram.Row(labelDebt, labelPayment),
		telegram.Row(labelMembers, labelBalance),
		telegram.Row(labelReports),
	)
}

func blockKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelBlockedList), telegram.Row(labelBack))
}

func customerKeyboard() *telegram.ReplyKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(labelMyDebts, labelRefresh))
}

// mainKeyboard returns the root menu of a persona, or a keyboard removal for blocked accounts.
func mainKeyboard(p models.Persona) any {
	switch p {
	case models.PersonaSuperadmin:
		return superadminKeyboard()
	case models.PersonaTenantOwner:
		return staffKeyboard(true)
	case models.PersonaTenantStaff:
		return staffKeyboard(false)
	case models.PersonaCustomer:
		return customerKeyboard()
	case models.PersonaBlocked:
		return telegram.RemoveKeyboard()
	default:
		return roleKeyboard()
	}
}
