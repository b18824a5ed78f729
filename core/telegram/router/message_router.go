package router

import (
	"time"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Pending defines the minimal interface for the pending-action manager.
type Pending interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) (bool, error)
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	// NonPrivate receives text from group and supergroup chats. Those
	// messages are relay input, never configuration input.
	NonPrivate  tele.HandlerFunc
	UnknownText tele.HandlerFunc
}

// TextRoute builds the handler that routes text messages. Pending prompts
// and command lookup apply to private chats only; group text is handed to
// NonPrivate untouched. Within a private chat a pending action always wins
// over command lookup: arming a menu action and then typing a command
// consumes the command text as the action's input.
func TextRoute(pending Pending, reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
			if opts.NonPrivate != nil {
				return handleWithSummary(c, "group_post", start, "", "", func() error {
					return opts.NonPrivate(c)
				})
			}
			logHandlerSummary(c, "group_post", start, "skip", "ok", nil)
			return nil
		}

		if pending != nil && c.Sender() != nil && pending.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "pending", start, "", "", func() error {
				_, err := pending.ManagerHandler(c)
				return err
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// ChannelPostRoute wires the channel-post handler that feeds the relay engine.
// Edited posts arrive on a separate endpoint and are not relayed.
func ChannelPostRoute(h tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Message() == nil {
			return nil
		}
		return handleWithSummary(c, "channel_post", start, "", "", func() error {
			return h(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnChannelPost,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// MediaRoutes wires the media message kinds. Telegram delivers group media
// on per-kind endpoints rather than OnText, so they need their own routes
// to reach the relay; in private chats media carries no meaning and is
// dropped.
func MediaRoutes(h tele.HandlerFunc) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		chat := c.Chat()
		if c.Message() == nil || chat == nil || chat.Type == tele.ChatPrivate {
			logHandlerSummary(c, "media_post", start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, "media_post", start, "", "", func() error {
			return h(c)
		})
	}
	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))

	endpoints := []string{
		tele.OnPhoto, tele.OnVideo, tele.OnAnimation, tele.OnDocument,
		tele.OnAudio, tele.OnVoice, tele.OnVideoNote, tele.OnSticker,
	}
	routes := make([]tg.Route, 0, len(endpoints))
	for _, ep := range endpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrapped})
	}
	return routes
}
