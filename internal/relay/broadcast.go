package relay

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
)

// Broadcast sends text to every configured user, best-effort: a failure for
// one recipient never aborts the loop. The admin is skipped so they do not
// receive their own announcement.
func (a *App) Broadcast(ctx context.Context, text string) {
	if a.transport == nil {
		return
	}
	table, err := a.store.Load(ctx)
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "broadcast.load.fail",
			slog.String("err", err.Error()),
		)
		return
	}

	ids := make([]string, 0, len(table))
	for uid := range table {
		ids = append(ids, uid)
	}
	sort.Strings(ids)

	adminKey := userKey(a.cfg.Telegram.AdminID)
	delivered, failed := 0, 0
	for _, uid := range ids {
		if uid == adminKey {
			continue
		}
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			continue
		}
		if err := a.transport.Send(tele.ChatID(id), text); err != nil {
			failed++
			logger.Relay.LogAttrs(ctx, slog.LevelWarn, "broadcast.recipient.fail",
				slog.String("recipient", uid),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		delivered++
	}

	logger.Relay.LogAttrs(ctx, slog.LevelInfo, "broadcast.done",
		slog.String("status", "ok"),
		slog.Int("recipients", len(ids)),
		slog.Int("delivered", delivered),
		slog.Int("failed", failed),
	)
}
