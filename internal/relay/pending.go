package relay

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/internal/routing"
)

// onSourceInput consumes the awaiting-source prompt. Invalid input is
// dropped silently; the prompt has already been consumed either way.
func (a *App) onSourceInput(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "pending.set_source")
	ref, err := routing.ParseRef(c.Text())
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelDebug, "set_source.input.invalid",
			slog.Int64("user_id", c.Sender().ID),
		)
		return nil
	}
	if _, err := a.store.Update(ctx, userKey(c.Sender().ID), func(e routing.Entry) routing.Entry {
		return routing.SetSource(e, ref)
	}); err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "set_source.fail",
			slog.String("source", ref.String()),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return tghelpers.SendText(c, "✅ Source set: "+ref.String())
}

// onTargetInput consumes the awaiting-target prompt and appends the target
// if it is not already present.
func (a *App) onTargetInput(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "pending.add_target")
	ref, err := routing.ParseRef(c.Text())
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelDebug, "add_target.input.invalid",
			slog.Int64("user_id", c.Sender().ID),
		)
		return nil
	}
	if _, err := a.store.Update(ctx, userKey(c.Sender().ID), func(e routing.Entry) routing.Entry {
		return routing.AddTarget(e, ref)
	}); err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "add_target.fail",
			slog.String("target", ref.String()),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return tghelpers.SendText(c, "✅ Added target: "+ref.String())
}

// onBroadcastInput consumes the admin's broadcast prompt. The flag is
// already cleared at this point, so delivery failures never leave a stale
// broadcast mode behind.
func (a *App) onBroadcastInput(c tele.Context) error {
	if !a.isAdmin(c.Sender().ID) {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "pending.broadcast")
	a.Broadcast(ctx, c.Text())
	return tghelpers.SendText(c, "✅ Broadcast sent to all users.")
}
