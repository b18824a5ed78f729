package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/internal/forward"
	"github.com/m3rciful/relaybot/internal/store"
)

const adminID int64 = 99

// fakeTransport records outbound traffic instead of hitting Telegram.
type fakeTransport struct {
	copied    []string
	forwarded []string
	sent      map[string][]string
	failFor   map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: map[string][]string{}, failFor: map[string]error{}}
}

func (f *fakeTransport) Copy(to tele.Recipient, msg *tele.Message) error {
	if err := f.failFor[to.Recipient()]; err != nil {
		return err
	}
	f.copied = append(f.copied, to.Recipient())
	return nil
}

func (f *fakeTransport) Forward(to tele.Recipient, msg *tele.Message) error {
	if err := f.failFor[to.Recipient()]; err != nil {
		return err
	}
	f.forwarded = append(f.forwarded, to.Recipient())
	return nil
}

func (f *fakeTransport) Send(to tele.Recipient, text string) error {
	if err := f.failFor[to.Recipient()]; err != nil {
		return err
	}
	f.sent[to.Recipient()] = append(f.sent[to.Recipient()], text)
	return nil
}

// fakeContext implements just the tele.Context surface the handlers touch.
// Calls to anything else panic via the nil embedded interface.
type fakeContext struct {
	tele.Context
	update tele.Update
	kv     map[string]any
	out    []string
}

func newFakeContext(upd tele.Update) *fakeContext {
	return &fakeContext{update: upd, kv: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }

func (f *fakeContext) Message() *tele.Message {
	if f.update.ChannelPost != nil {
		return f.update.ChannelPost
	}
	return f.update.Message
}

func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	if m := f.Message(); m != nil {
		return m.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if m := f.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (f *fakeContext) Text() string {
	if m := f.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.out = append(f.out, fmt.Sprint(what))
	return nil
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.out = append(f.out, fmt.Sprint(what))
	return nil
}

func (f *fakeContext) EditOrSend(what interface{}, opts ...interface{}) error {
	f.out = append(f.out, fmt.Sprint(what))
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error { return nil }

func (f *fakeContext) Get(key string) any        { return f.kv[key] }
func (f *fakeContext) Set(key string, value any) { f.kv[key] = value }

func textCtx(userID int64, text string) *fakeContext {
	return newFakeContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func callbackCtx(userID int64, key, payload string) *fakeContext {
	data := "\f" + key
	if payload != "" {
		data += "|" + payload
	}
	return newFakeContext(tele.Update{
		ID: 2,
		Callback: &tele.Callback{
			Sender: &tele.User{ID: userID},
			Data:   data,
			Message: &tele.Message{
				Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			},
		},
	})
}

func channelPostCtx(chatID int64, username, text string) *fakeContext {
	return newFakeContext(tele.Update{
		ID: 3,
		ChannelPost: &tele.Message{
			Text: text,
			Chat: &tele.Chat{ID: chatID, Username: username, Type: tele.ChatChannel},
		},
	})
}

func groupTextCtx(userID, chatID int64, username, text string) *fakeContext {
	return newFakeContext(tele.Update{
		ID: 4,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: chatID, Username: username, Type: tele.ChatSuperGroup},
		},
	})
}

func newTestApp(t *testing.T) (*App, *fakeTransport, *store.MemoryStore) {
	t.Helper()
	cfg := &coreconfig.Config{}
	cfg.Telegram.AdminID = adminID

	st := store.NewMemoryStore()
	transport := newFakeTransport()
	app := New(cfg, st, WithTransport(transport), WithEngineOptions(
		forward.WithSleep(func(time.Duration) {}),
		forward.WithRand(func() float64 { return 0 }),
	))
	return app, transport, st
}

// routeHandler looks up the wired handler for an endpoint from the app's
// production route table.
func routeHandler(t *testing.T, app *App, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range app.Routes() {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for endpoint %v", endpoint)
	return nil
}

// sendText pushes a free-text message through the real text route, so
// chat-type scoping, pending-action priority and command lookup behave as
// in production.
func sendText(t *testing.T, app *App, userID int64, text string) *fakeContext {
	t.Helper()
	c := textCtx(userID, text)
	require.NoError(t, routeHandler(t, app, tele.OnText)(c))
	return c
}

func pressButton(t *testing.T, app *App, userID int64, key, payload string) *fakeContext {
	t.Helper()
	c := callbackCtx(userID, key, payload)
	h, ok := app.Registry().GetCallback(key)
	require.True(t, ok, "callback %s not registered", key)
	require.NoError(t, h(c))
	return c
}

func TestStartCreatesEmptyEntry(t *testing.T) {
	app, _, st := newTestApp(t)

	sendText(t, app, 42, "/start")

	table, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, table, "42")
	assert.Nil(t, table["42"].Source)
	assert.Empty(t, table["42"].Targets)
}

func TestConfigureAndForward(t *testing.T) {
	app, transport, st := newTestApp(t)
	ctx := context.Background()

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorB")

	before, err := st.Load(ctx)
	require.NoError(t, err)

	post := channelPostCtx(-100123, "newsfeed", "breaking")
	require.NoError(t, app.HandleSourcePost(post))

	assert.Equal(t, []string{"@mirrorA", "@mirrorB"}, transport.copied)
	assert.Empty(t, transport.forwarded)

	// a forwarded post only reads config, never writes it
	after, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestForwardFailureIsolation(t *testing.T) {
	app, transport, _ := newTestApp(t)
	transport.failFor["@mirrorB"] = errors.New("blocked")

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	for _, tgt := range []string{"@mirrorA", "@mirrorB", "@mirrorC"} {
		pressButton(t, app, 42, cbAddTarget, "")
		sendText(t, app, 42, tgt)
	}

	require.NoError(t, app.HandleSourcePost(channelPostCtx(-1, "newsfeed", "hi")))
	assert.Equal(t, []string{"@mirrorA", "@mirrorC"}, transport.copied)
}

func TestBroadcastReachesEveryUserButAdmin(t *testing.T) {
	app, transport, _ := newTestApp(t)

	sendText(t, app, 1, "/start")
	sendText(t, app, 2, "/start")
	sendText(t, app, adminID, "/start")

	pressButton(t, app, adminID, cbBroadcast, "")
	assert.True(t, app.Pending().InProgress(adminID))

	sendText(t, app, adminID, "hello")

	assert.Equal(t, []string{"hello"}, transport.sent["1"])
	assert.Equal(t, []string{"hello"}, transport.sent["2"])
	assert.Empty(t, transport.sent[fmt.Sprint(adminID)])
	// flag cleared after the one broadcast message
	assert.False(t, app.Pending().InProgress(adminID))
}

func TestBroadcastFlagClearedDespiteFailures(t *testing.T) {
	app, transport, _ := newTestApp(t)
	transport.failFor["1"] = errors.New("blocked")

	sendText(t, app, 1, "/start")
	sendText(t, app, 2, "/start")

	pressButton(t, app, adminID, cbBroadcast, "")
	sendText(t, app, adminID, "hello")

	assert.Equal(t, []string{"hello"}, transport.sent["2"])
	assert.False(t, app.Pending().InProgress(adminID))
}

func TestBroadcastIsAdminOnly(t *testing.T) {
	app, _, _ := newTestApp(t)
	pressButton(t, app, 42, cbBroadcast, "")
	assert.False(t, app.Pending().InProgress(42))
}

func TestRemoveSourceCancelKeepsSource(t *testing.T) {
	app, _, st := newTestApp(t)
	ctx := context.Background()

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")

	pressButton(t, app, 42, cbRemoveSource, "")
	pressButton(t, app, 42, cbCancel, "")

	table, err := st.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, table["42"].Source)
	assert.Equal(t, "@newsfeed", table["42"].Source.String())
}

func TestRemoveSourceConfirmClearsSource(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	pressButton(t, app, 42, cbRemoveSource, "")
	pressButton(t, app, 42, cbConfirmRemoveSource, "")

	table, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table["42"].Source)
}

func TestRemoveTargetViaButton(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorB")

	pressButton(t, app, 42, cbDeleteTarget, "@mirrorA")

	table, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, table["42"].Targets, 1)
	assert.Equal(t, "@mirrorB", table["42"].Targets[0].String())
}

func TestPendingActionIsSingleShot(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	require.True(t, app.Pending().InProgress(42))

	// whitespace never parses as a ref, yet the prompt is still consumed
	sendText(t, app, 42, "   ")
	assert.False(t, app.Pending().InProgress(42))

	table, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table["42"].Source)

	// the next message is plain text again, not source input
	sendText(t, app, 42, "@late")
	table, err = st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table["42"].Source)
}

func TestGroupChatterDoesNotConsumePending(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	require.True(t, app.Pending().InProgress(42))

	// chatter in a shared group is not configuration input
	h := routeHandler(t, app, tele.OnText)
	require.NoError(t, h(groupTextCtx(42, -200, "", "lunch at noon?")))

	assert.True(t, app.Pending().InProgress(42))
	table, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table["42"].Source)

	// the prompt still accepts the next private message
	sendText(t, app, 42, "@newsfeed")
	table, err = st.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, table["42"].Source)
	assert.Equal(t, "@newsfeed", table["42"].Source.String())
}

func TestGroupPostIsRelayed(t *testing.T) {
	app, transport, _ := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")

	// text from a matching supergroup goes down the fan-out path
	h := routeHandler(t, app, tele.OnText)
	require.NoError(t, h(groupTextCtx(7, -321, "newsfeed", "group update")))

	assert.Equal(t, []string{"@mirrorA"}, transport.copied)
}

func TestGroupMediaIsRelayed(t *testing.T) {
	app, transport, _ := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "-321")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")

	c := newFakeContext(tele.Update{
		ID: 5,
		Message: &tele.Message{
			Photo:  &tele.Photo{},
			Sender: &tele.User{ID: 7},
			Chat:   &tele.Chat{ID: -321, Type: tele.ChatSuperGroup},
		},
	})
	require.NoError(t, routeHandler(t, app, tele.OnPhoto)(c))

	assert.Equal(t, []string{"@mirrorA"}, transport.copied)
}

func TestPrivateMediaIsIgnored(t *testing.T) {
	app, transport, _ := newTestApp(t)

	c := newFakeContext(tele.Update{
		ID: 6,
		Message: &tele.Message{
			Photo:  &tele.Photo{},
			Sender: &tele.User{ID: 42},
			Chat:   &tele.Chat{ID: 42, Type: tele.ChatPrivate},
		},
	})
	require.NoError(t, routeHandler(t, app, tele.OnPhoto)(c))

	assert.Empty(t, transport.copied)
	assert.Empty(t, c.out)
}

func TestPendingWinsOverCommand(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "/start")

	// "/start" was consumed as the source value, not executed as a command
	table, err := st.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, table["42"].Source)
	assert.Equal(t, "@/start", table["42"].Source.String())
}

func TestPendingWinsOverCommandEndpoint(t *testing.T) {
	app, _, st := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")

	// Telegram dispatches a matched command on its own endpoint, bypassing
	// OnText, so the command route itself must honour the armed prompt.
	c := textCtx(42, "/start")
	require.NoError(t, routeHandler(t, app, "/start")(c))

	table, err := st.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, table["42"].Source)
	assert.Equal(t, "@/start", table["42"].Source.String())
	assert.False(t, app.Pending().InProgress(42))

	require.Len(t, c.out, 1)
	assert.Contains(t, c.out[0], "Source set")
}

func TestStatsCountsUsers(t *testing.T) {
	app, _, _ := newTestApp(t)
	sendText(t, app, 1, "/start")
	sendText(t, app, 2, "/start")

	c := pressButton(t, app, adminID, cbStats, "")
	require.Len(t, c.out, 1)
	assert.Contains(t, c.out[0], "2")

	// non-admin presses are silently ignored
	c = pressButton(t, app, 1, cbStats, "")
	assert.Empty(t, c.out)
}

func TestViewShowsSetup(t *testing.T) {
	app, _, _ := newTestApp(t)
	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")

	c := pressButton(t, app, 42, cbView, "")
	require.Len(t, c.out, 1)
	assert.Contains(t, c.out[0], "@newsfeed")
	assert.Contains(t, c.out[0], "@mirrorA")
}

func TestForwardedPostKeepsAttribution(t *testing.T) {
	app, transport, _ := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "@newsfeed")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")

	post := channelPostCtx(-1, "newsfeed", "hi")
	post.update.ChannelPost.OriginalChat = &tele.Chat{ID: -5}
	require.NoError(t, app.HandleSourcePost(post))

	assert.Empty(t, transport.copied)
	assert.Equal(t, []string{"@mirrorA"}, transport.forwarded)
}

func TestNumericSourceMatch(t *testing.T) {
	app, transport, _ := newTestApp(t)

	pressButton(t, app, 42, cbSetSource, "")
	sendText(t, app, 42, "-100123")
	pressButton(t, app, 42, cbAddTarget, "")
	sendText(t, app, 42, "@mirrorA")

	require.NoError(t, app.HandleSourcePost(channelPostCtx(-100123, "", "hi")))
	assert.Equal(t, []string{"@mirrorA"}, transport.copied)
}
