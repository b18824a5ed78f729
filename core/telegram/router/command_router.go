package router

import (
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc

	// Pending, when set, lets an armed prompt consume the command text as
	// its input instead of executing the command. Telegram dispatches a
	// matched command before OnText, so the priority has to be enforced on
	// the command endpoint itself.
	Pending Pending
	// NonPrivate receives command messages sent in group chats.
	NonPrivate tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		h = commandGuard(opts, h)
		h = middleware.LoggerMiddleware(h)
		h = middleware.RecoverMiddleware(h)
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

// commandGuard keeps command endpoints consistent with the text route:
// group messages are relay input, and an armed prompt consumes the command
// text as its value before the command can run.
func commandGuard(opts CommandRouteOptions, next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
			if opts.NonPrivate != nil {
				return opts.NonPrivate(c)
			}
			return nil
		}
		if opts.Pending != nil && c.Sender() != nil && opts.Pending.InProgress(c.Sender().ID) {
			_, err := opts.Pending.ManagerHandler(c)
			return err
		}
		return next(c)
	}
}
