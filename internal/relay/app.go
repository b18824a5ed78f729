// Package relay wires the routing table, pending-action tracker and
// forwarding engine into a Telegram bot: menu commands, button callbacks,
// free-text configuration input and channel-post fan-out.
package relay

import (
	"context"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/state"
	"github.com/m3rciful/relaybot/internal/forward"
	"github.com/m3rciful/relaybot/internal/routing"
	"github.com/m3rciful/relaybot/internal/store"
)

// App owns the bot-facing behaviour of the relay.
type App struct {
	cfg     *coreconfig.Config
	store   store.Store
	pending state.Manager
	reg     *tg.Registry

	transport  Transport
	engine     *forward.Engine
	engineOpts []forward.Option
}

// Option adjusts App construction.
type Option func(*App)

// WithTransport injects the outbound transport up front (used in tests; in
// production the transport is attached once the bot is built).
func WithTransport(t Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithEngineOptions forwards options to the forwarding engine.
func WithEngineOptions(opts ...forward.Option) Option {
	return func(a *App) { a.engineOpts = opts }
}

// New builds the relay application and registers its commands, callbacks
// and pending-action handlers.
func New(cfg *coreconfig.Config, st store.Store, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		store:   st,
		pending: state.NewMemoryManager(),
		reg:     tg.NewRegistry(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.transport != nil {
		a.engine = forward.NewEngine(a.transport, a.engineOpts...)
	}
	a.wire()
	return a
}

// SetTransport attaches the outbound transport and rebuilds the engine.
func (a *App) SetTransport(t Transport) {
	a.transport = t
	a.engine = forward.NewEngine(t, a.engineOpts...)
}

// AttachBot wires the live bot instance as the transport.
func (a *App) AttachBot(bot *tele.Bot) {
	a.SetTransport(NewBotTransport(bot))
}

// Registry exposes the command/callback registry for wiring.
func (a *App) Registry() *tg.Registry { return a.reg }

// Pending exposes the pending-action tracker, mainly for tests.
func (a *App) Pending() state.Manager { return a.pending }

func (a *App) wire() {
	a.reg.RegisterCommand("/start", commands.Command{
		Description: "show the forwarding menu",
		Handler:     a.handleStart,
	})

	// unknown button payloads are ignored without any user-visible reaction
	a.reg.SetCallbackNotFound(func(c tele.Context) error { return nil })

	cbs := map[string]tele.HandlerFunc{
		cbSetSource:           a.cbArmSource,
		cbAddTarget:           a.cbArmTarget,
		cbView:                a.cbShowSetup,
		cbStats:               a.cbShowStats,
		cbBroadcast:           a.cbArmBroadcast,
		cbRemoveTarget:        a.cbRemoveTargetMenu,
		cbDeleteTarget:        a.cbDeleteTargetApply,
		cbRemoveSource:        a.cbRemoveSourceConfirm,
		cbConfirmRemoveSource: a.cbClearSourceApply,
		cbCancel:              a.cbCancelFlow,
	}
	for key, h := range cbs {
		if err := a.reg.RegisterCallback(key, h); err != nil {
			logger.Relay.LogAttrs(context.Background(), slog.LevelError, "wire.callback.fail",
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
	}

	a.pending.RegisterHandler(StateAwaitingSource, a.onSourceInput)
	a.pending.RegisterHandler(StateAwaitingTarget, a.onTargetInput)
	a.pending.RegisterHandler(StateAwaitingBroadcast, a.onBroadcastInput)
}

// Routes returns every bot route of the relay.
func (a *App) Routes() []tg.Route {
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID:    a.cfg.Telegram.AdminID,
		Pending:    a.pending,
		NonPrivate: a.HandleSourcePost,
	})
	routes = append(routes,
		router.CallbackRoute(a.reg, router.CallbackOptions{}),
		router.TextRoute(a.pending, a.reg, router.TextOptions{NonPrivate: a.HandleSourcePost}),
		router.ChannelPostRoute(a.HandleSourcePost),
	)
	routes = append(routes, router.MediaRoutes(a.HandleSourcePost)...)
	return routes
}

// RunOptions assembles the bot runtime configuration.
func (a *App) RunOptions() tg.RunOptions {
	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.Routes(),
		// channel posts are not in Telegram's default long-poll set
		AllowedUpdates: []string{"message", "callback_query", "channel_post"},
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.AttachBot(rt.Bot)
			return nil
		},
	}
}

func (a *App) isAdmin(userID int64) bool {
	return a.cfg.Telegram.AdminID != 0 && userID == a.cfg.Telegram.AdminID
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// handleStart lazily creates the user's routing entry and renders the menu
// matching their role.
func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")
	user := c.Sender()
	if user == nil {
		return nil
	}

	if _, err := a.store.Update(ctx, userKey(user.ID), func(e routing.Entry) routing.Entry {
		return e
	}); err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "start.entry.fail",
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
	}

	if a.isAdmin(user.ID) {
		return tghelpers.SendMD(c, "👋 Admin Menu:", adminMenu())
	}
	return tghelpers.SendMD(c, "👋 Manage your forwarding setup:", userMenu())
}

// entryFor reads the current routing entry for a user, degrading to a zero
// entry on store failure.
func (a *App) entryFor(ctx context.Context, userID int64) routing.Entry {
	table, err := a.store.Load(ctx)
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "store.load.fail",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return routing.Entry{}
	}
	return table[userKey(userID)]
}

// HandleSourcePost resolves matching users for a post in any non-private
// chat (channel, group or supergroup) and runs the fan-out for each of
// them, logging one report per user.
func (a *App) HandleSourcePost(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil || a.engine == nil {
		return nil
	}
	if msg.Chat.Type == tele.ChatPrivate {
		return nil
	}

	ctx := tghelpers.WithHandler(c, "forward")
	table, err := a.store.Load(ctx)
	if err != nil {
		logger.Relay.LogAttrs(ctx, slog.LevelError, "forward.load.fail",
			slog.Int64("source", msg.Chat.ID),
			slog.String("err", err.Error()),
		)
		return nil
	}

	matches := routing.Match(table, msg.Chat.ID, msg.Chat.Username)
	for _, m := range matches {
		report := a.engine.Deliver(ctx, m.UserID, m.Entry, msg)
		forward.LogReport(ctx, report, msg.Chat.ID)
	}
	return nil
}
