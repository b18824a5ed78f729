package relay

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/internal/routing"
)

// cbArmSource arms the pending action that interprets the next message as
// the new source channel.
func (a *App) cbArmSource(c tele.Context) error {
	a.pending.Set(c.Sender().ID, StateAwaitingSource)
	return tghelpers.SendText(c, "📡 Send the @username or channel ID of your source.")
}

// cbArmTarget arms the pending action that interprets the next message as a
// target to add.
func (a *App) cbArmTarget(c tele.Context) error {
	a.pending.Set(c.Sender().ID, StateAwaitingTarget)
	return tghelpers.SendText(c, "➕ Send the @username or channel ID to add as target.")
}

// cbShowSetup answers with the user's current source and targets. Reads
// only, never touches pending state.
func (a *App) cbShowSetup(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.view")
	entry := a.entryFor(ctx, c.Sender().ID)

	source := "not set"
	if entry.Source != nil {
		source = entry.Source.String()
	}
	targets := make([]string, 0, len(entry.Targets))
	for _, t := range entry.Targets {
		targets = append(targets, t.String())
	}
	return tghelpers.SendText(c, fmt.Sprintf("📋 Your setup:\n• Source: %s\n• Targets: %v", source, targets))
}

// cbShowStats is admin-only: reports the number of configured users.
func (a *App) cbShowStats(c tele.Context) error {
	if !a.isAdmin(c.Sender().ID) {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "callback.stats")
	table, err := a.store.Load(ctx)
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "stats.load.fail",
			slog.String("err", err.Error()),
		)
		return nil
	}
	return tghelpers.SendText(c, fmt.Sprintf("📊 Total users: %d", len(table)))
}

// cbArmBroadcast is admin-only: the next message becomes the broadcast
// payload.
func (a *App) cbArmBroadcast(c tele.Context) error {
	if !a.isAdmin(c.Sender().ID) {
		return nil
	}
	a.pending.Set(c.Sender().ID, StateAwaitingBroadcast)
	return tghelpers.SendText(c, "📢 Send your broadcast message now.")
}

// cbRemoveTargetMenu renders one delete button per configured target.
// Removal of a target applies directly, no confirmation step.
func (a *App) cbRemoveTargetMenu(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.remove_target")
	entry := a.entryFor(ctx, c.Sender().ID)
	if len(entry.Targets) == 0 {
		return tghelpers.SendText(c, "You have no targets configured.")
	}
	targets := make([]string, 0, len(entry.Targets))
	for _, t := range entry.Targets {
		targets = append(targets, t.String())
	}
	return tghelpers.SendMD(c, "🗑 Pick a target to remove:", removeTargetMenu(targets))
}

// cbDeleteTargetApply removes the target named in the callback payload.
func (a *App) cbDeleteTargetApply(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.del")
	ref, err := routing.ParseRef(callbacks.CallbackPayload(c))
	if err != nil {
		return nil
	}
	if _, err := a.store.Update(ctx, userKey(c.Sender().ID), func(e routing.Entry) routing.Entry {
		return routing.RemoveTarget(e, ref)
	}); err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "remove_target.fail",
			slog.String("target", ref.String()),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return tghelpers.EditOrSendMD(c, "🗑 Removed target: "+ref.String())
}

// cbRemoveSourceConfirm asks for confirmation before clearing the source,
// since losing it silently stops all forwarding for the user.
func (a *App) cbRemoveSourceConfirm(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.remove_source")
	entry := a.entryFor(ctx, c.Sender().ID)
	if entry.Source == nil {
		return tghelpers.SendText(c, "You have no source configured.")
	}
	return tghelpers.SendMD(c,
		"🚫 Remove source "+entry.Source.String()+"? Forwarding stops until a new one is set.",
		confirmRemoveSourceMenu())
}

// cbClearSourceApply performs the confirmed source removal.
func (a *App) cbClearSourceApply(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.confirm_remove_source")
	if _, err := a.store.Update(ctx, userKey(c.Sender().ID), func(e routing.Entry) routing.Entry {
		return routing.ClearSource(e)
	}); err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "remove_source.fail",
			slog.String("err", err.Error()),
		)
		return nil
	}
	return tghelpers.EditOrSendMD(c, "✅ Source removed.")
}

// cbCancelFlow aborts any sub-menu or pending prompt with no side effect.
func (a *App) cbCancelFlow(c tele.Context) error {
	a.pending.Clear(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, "❌ Cancelled.")
}
