package relay

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/keyboard"
)

// Callback keys the menu buttons emit. The del key carries the target ref as
// its payload.
const (
	cbSetSource           = "set_source"
	cbAddTarget           = "add_target"
	cbView                = "view"
	cbStats               = "stats"
	cbBroadcast           = "broadcast"
	cbRemoveTarget        = "remove_target"
	cbDeleteTarget        = "del"
	cbRemoveSource        = "remove_source"
	cbConfirmRemoveSource = "confirm_remove_source"
	cbCancel              = "cancel"
)

func userMenuButtons() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{
		{Text: "📡 Set Source", Unique: cbSetSource},
		{Text: "➕ Add Target", Unique: cbAddTarget},
		{Text: "📋 View Channels", Unique: cbView},
		{Text: "🗑 Remove Target", Unique: cbRemoveTarget},
		{Text: "🚫 Remove Source", Unique: cbRemoveSource},
	}
}

// userMenu is the configuration menu every user gets.
func userMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons(userMenuButtons())
}

// adminMenu is the user menu plus broadcast and stats.
func adminMenu() *tele.ReplyMarkup {
	buttons := append(userMenuButtons(),
		keyboard.InlineBtn{Text: "📢 Broadcast", Unique: cbBroadcast},
		keyboard.InlineBtn{Text: "📊 Stats", Unique: cbStats},
	)
	return keyboard.InlineButtons(buttons)
}

// removeTargetMenu lists one button per configured target plus cancel.
func removeTargetMenu(targets []string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(targets)+1)
	for _, t := range targets {
		buttons = append(buttons, keyboard.InlineBtn{Text: t, Unique: cbDeleteTarget, Data: t})
	}
	buttons = append(buttons, keyboard.CancelButton(cbCancel))
	return keyboard.InlineButtons(buttons)
}

// confirmRemoveSourceMenu gates the one destructive action behind an
// explicit confirm step.
func confirmRemoveSourceMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ Confirm", Unique: cbConfirmRemoveSource}},
		[]keyboard.InlineBtn{keyboard.CancelButton(cbCancel)},
	)
}
