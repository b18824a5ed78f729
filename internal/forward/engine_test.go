package forward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/internal/routing"
)

type fakeSender struct {
	copied    []string
	forwarded []string
	failFor   map[string]error
}

func (f *fakeSender) Copy(to tele.Recipient, msg *tele.Message) error {
	if err, ok := f.failFor[to.Recipient()]; ok {
		return err
	}
	f.copied = append(f.copied, to.Recipient())
	return nil
}

func (f *fakeSender) Forward(to tele.Recipient, msg *tele.Message) error {
	if err, ok := f.failFor[to.Recipient()]; ok {
		return err
	}
	f.forwarded = append(f.forwarded, to.Recipient())
	return nil
}

func entryWithTargets(t *testing.T, refs ...string) routing.Entry {
	t.Helper()
	e := routing.Entry{}
	for _, r := range refs {
		ref, err := routing.ParseRef(r)
		require.NoError(t, err)
		e = routing.AddTarget(e, ref)
	}
	return e
}

func TestDeliverFanOutIsolation(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{"@b": errors.New("blocked")}}
	var slept []time.Duration
	eng := NewEngine(sender,
		WithSleep(func(d time.Duration) { slept = append(slept, d) }),
		WithRand(func() float64 { return 0 }),
	)

	entry := entryWithTargets(t, "@a", "@b", "@c")
	report := eng.Deliver(context.Background(), "1", entry, &tele.Message{Text: "hi"})

	// B failing never short-circuits A or C
	assert.Equal(t, []string{"@a", "@c"}, sender.copied)
	assert.Equal(t, 2, report.Delivered())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, "partial", report.Outcome())
	require.Error(t, report.Err())

	// one fixed penalty for the failure, pacing sleeps for the successes
	require.Len(t, slept, 3)
	assert.Equal(t, failurePenalty, slept[1])
}

func TestDeliverForwardsWhenSourceWasForwarded(t *testing.T) {
	sender := &fakeSender{}
	eng := NewEngine(sender, WithSleep(func(time.Duration) {}), WithRand(func() float64 { return 0 }))

	entry := entryWithTargets(t, "@a")
	msg := &tele.Message{OriginalChat: &tele.Chat{ID: 5}}
	eng.Deliver(context.Background(), "1", entry, msg)

	assert.Empty(t, sender.copied)
	assert.Equal(t, []string{"@a"}, sender.forwarded)
}

func TestSuccessDelayScalesWithFanOut(t *testing.T) {
	eng := NewEngine(&fakeSender{}, WithRand(func() float64 { return 0 }))

	one := eng.successDelay(1)
	five := eng.successDelay(5)

	// lower bound is 1s + 300ms per target
	assert.Equal(t, 1300*time.Millisecond, one)
	assert.Equal(t, 2500*time.Millisecond, five)
	assert.Greater(t, five, one)
}

func TestSuccessDelayUpperBound(t *testing.T) {
	eng := NewEngine(&fakeSender{}, WithRand(func() float64 { return 0.999999 }))
	d := eng.successDelay(0)
	assert.Less(t, d, 3*time.Second)
	assert.GreaterOrEqual(t, d, 1*time.Second)
}

func TestDeliverEmptyTargets(t *testing.T) {
	sender := &fakeSender{}
	eng := NewEngine(sender, WithSleep(func(time.Duration) {}))
	report := eng.Deliver(context.Background(), "1", routing.Entry{}, &tele.Message{Text: "hi"})
	assert.Empty(t, report.Deliveries)
	assert.Equal(t, "ok", report.Outcome())
	assert.NoError(t, report.Err())
}
