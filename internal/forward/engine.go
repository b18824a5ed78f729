// Package forward implements the delivery loop: sequential per-target
// sends with randomized pacing and per-target failure isolation.
package forward

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/routing"

	tele "gopkg.in/telebot.v4"
)

// Sender abstracts the two transport calls the engine needs.
type Sender interface {
	// Copy delivers the message content without a forwarded-from header.
	Copy(to tele.Recipient, msg *tele.Message) error
	// Forward delivers the message with attribution to its origin.
	Forward(to tele.Recipient, msg *tele.Message) error
}

const (
	// failurePenalty is the fixed pause after a failed delivery.
	failurePenalty = 2 * time.Second
	// perTargetWeight scales the success pause with the user's fan-out.
	perTargetWeight = 300 * time.Millisecond
)

// Engine drives the fan-out for matched source posts. Targets within one
// user are always delivered sequentially; a failure pauses and moves on,
// never aborting the remaining targets.
type Engine struct {
	sender Sender
	sleep  func(time.Duration)
	randFn func() float64
}

// Option tweaks engine construction, mainly for tests.
type Option func(*Engine)

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithRand replaces the pacing randomness source. fn must return values
// in [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Engine) { e.randFn = fn }
}

// NewEngine builds an Engine on top of the transport sender.
func NewEngine(sender Sender, opts ...Option) *Engine {
	e := &Engine{
		sender: sender,
		sleep:  time.Sleep,
		randFn: rand.Float64,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// successDelay draws the post-delivery pause: uniform over [1s, 3s) plus
// 300ms per configured target, so a user with a wide fan-out is throttled
// harder.
func (e *Engine) successDelay(targetCount int) time.Duration {
	base := time.Duration((e.randFn()*2 + 1) * float64(time.Second))
	return base + time.Duration(targetCount)*perTargetWeight
}

// Deliver fans one source post out to every target of one matched user and
// returns the per-target report. Delivery is at-most-once per target; there
// is no retry.
func (e *Engine) Deliver(ctx context.Context, userID string, entry routing.Entry, msg *tele.Message) Report {
	report := Report{UserID: userID}
	if msg == nil || len(entry.Targets) == 0 {
		return report
	}

	// A post that is itself a forward keeps its attribution; everything
	// else goes out as a plain copy.
	forwarded := msg.OriginalSender != nil || msg.OriginalChat != nil

	for _, target := range entry.Targets {
		var err error
		if forwarded {
			err = e.sender.Forward(target, msg)
		} else {
			err = e.sender.Copy(target, msg)
		}
		report.Deliveries = append(report.Deliveries, Delivery{Target: target, Err: err})

		if err != nil {
			logger.Relay.LogAttrs(ctx, slog.LevelWarn, "forward.target.fail",
				slog.String("user_id", userID),
				slog.String("target", target.String()),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			e.sleep(failurePenalty)
			continue
		}
		e.sleep(e.successDelay(len(entry.Targets)))
	}
	return report
}

// LogReport emits the aggregated fan-out outcome for one user.
func LogReport(ctx context.Context, r Report, sourceChat int64) {
	attrs := []slog.Attr{
		slog.String("status", r.Outcome()),
		slog.String("outcome", r.Outcome()),
		slog.String("user_id", r.UserID),
		slog.Int64("source", sourceChat),
		slog.Int("targets", len(r.Deliveries)),
		slog.Int("delivered", r.Delivered()),
		slog.Int("failed", r.Failed()),
	}
	if err := r.Err(); err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 512)))
	}
	level := slog.LevelInfo
	if r.Failed() > 0 {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Relay, level, "forward.report", attrs...)
}
