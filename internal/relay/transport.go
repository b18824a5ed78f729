package relay

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/internal/forward"
)

// Transport is the outbound surface the relay needs from the chat layer:
// the two delivery calls of the forwarding engine plus a plain text send
// used for broadcasts.
type Transport interface {
	forward.Sender
	Send(to tele.Recipient, text string) error
}

// BotTransport adapts *tele.Bot to the Transport interface.
type BotTransport struct {
	bot *tele.Bot
}

// NewBotTransport wraps a running bot instance.
func NewBotTransport(bot *tele.Bot) *BotTransport {
	return &BotTransport{bot: bot}
}

// Copy re-sends the message content without the forwarded-from header.
func (t *BotTransport) Copy(to tele.Recipient, msg *tele.Message) error {
	_, err := t.bot.Copy(to, msg)
	return err
}

// Forward relays the message keeping its original attribution.
func (t *BotTransport) Forward(to tele.Recipient, msg *tele.Message) error {
	_, err := t.bot.Forward(to, msg)
	return err
}

// Send delivers plain text to a recipient.
func (t *BotTransport) Send(to tele.Recipient, text string) error {
	_, err := t.bot.Send(to, text)
	return err
}
