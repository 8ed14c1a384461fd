package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/SamPetering/slack-sales-notifier/internal/channels"
	"github.com/SamPetering/slack-sales-notifier/internal/eventbus"
	"github.com/SamPetering/slack-sales-notifier/internal/ledger"
	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// fakeGateway implements the gateway slices used by the resolver, the
// ledger, and the pipeline, backed by in-memory channels and messages.
// The mutex matters: channel resolution fans out concurrently.
type fakeGateway struct {
	mu       sync.Mutex
	channels []slack.Channel
	msgs     map[string][]slack.Message

	createErr error
	sendErr   error
}

func (f *fakeGateway) ListChannels(ctx context.Context) ([]slack.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slack.Channel(nil), f.channels...), nil
}

func (f *fakeGateway) CreateChannel(ctx context.Context, name string) (slack.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return slack.Channel{}, f.createErr
	}
	ch := slack.Channel{ID: "C_" + strings.ToUpper(name), Name: name}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeGateway) GetChannelMessages(ctx context.Context, channelID string, limit int) ([]slack.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[channelID], nil
}

func (f *fakeGateway) SendMessage(ctx context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	// Newest first, like conversations.history.
	f.msgs[channel] = append([]slack.Message{{Text: text}}, f.msgs[channel]...)
	return nil
}

type fakeNotifier struct {
	ok    bool
	err   error
	calls []string
}

func (n *fakeNotifier) Notify(ctx context.Context, eventID string) (bool, error) {
	n.calls = append(n.calls, eventID)
	return n.ok, n.err
}

func newTestPipeline(gw *fakeGateway, n *fakeNotifier, mode string) *Pipeline {
	r := channels.NewResolver(gw, logx.Nop())
	l := ledger.New(gw, 100, logx.Nop())
	return New(Config{
		Mode:          mode,
		SourceChannel: "sales",
		LogChannel:    "sales-bot-processed-log",
	}, gw, r, l, n, eventbus.New(), logx.Nop())
}

func sourceGateway(msgs ...slack.Message) *fakeGateway {
	return &fakeGateway{
		channels: []slack.Channel{
			{ID: "CSRC", Name: "sales"},
			{ID: "CLOG", Name: "sales-bot-processed-log"},
		},
		msgs: map[string][]slack.Message{"CSRC": msgs},
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", BotID: "B1"})
	n := &fakeNotifier{ok: true}
	p := newTestPipeline(gw, n, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, want processed", res.Outcome)
	}
	if res.Key != "Bob:WidgetCo:500" {
		t.Fatalf("key = %q, want Bob:WidgetCo:500", res.Key)
	}

	// Exactly one ledger entry with the key as its text.
	logMsgs := gw.msgs["CLOG"]
	if len(logMsgs) != 1 || logMsgs[0].Text != "Bob:WidgetCo:500" {
		t.Fatalf("log channel = %+v, want exactly one key entry", logMsgs)
	}

	// Second identical run: dedup hit, nothing new posted, no notification.
	res2, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if res2.Outcome != OutcomeDuplicate {
		t.Fatalf("second outcome = %s, want duplicate", res2.Outcome)
	}
	if len(gw.msgs["CLOG"]) != 1 {
		t.Fatalf("duplicate run posted to the ledger: %+v", gw.msgs["CLOG"])
	}
	if len(n.calls) != 1 {
		t.Fatalf("notify called %d times, want 1", len(n.calls))
	}
}

func TestRunNoActionableMessage(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(
		slack.Message{Text: "lunch anyone?", User: "U1"},
		slack.Message{Text: "standup in 5", User: "U2"},
	)
	n := &fakeNotifier{ok: true}
	p := newTestPipeline(gw, n, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeNoEvent {
		t.Fatalf("outcome = %s, want no_event", res.Outcome)
	}
	if len(n.calls) != 0 {
		t.Fatal("notify should not run without an event")
	}
}

func TestRunProductionIgnoresUserMessages(t *testing.T) {
	t.Parallel()
	// A user typing the announcement must not trigger in production.
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", User: "U1"})
	p := newTestPipeline(gw, &fakeNotifier{ok: true}, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeNoEvent {
		t.Fatalf("outcome = %s, want no_event", res.Outcome)
	}
}

func TestRunDevelopmentAcceptsUserMessages(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", User: "U1"})
	p := newTestPipeline(gw, &fakeNotifier{ok: true}, ModeDevelopment)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, want processed", res.Outcome)
	}
}

func TestRunMostRecentMessageWins(t *testing.T) {
	t.Parallel()
	// History is newest first; only the first surviving message is parsed.
	gw := sourceGateway(
		slack.Message{Text: "Alice just closed Acme for $1,000!", BotID: "B1"},
		slack.Message{Text: "Bob just closed WidgetCo for $500", BotID: "B1"},
	)
	n := &fakeNotifier{ok: true}
	p := newTestPipeline(gw, n, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Key != "Alice:Acme:1000" {
		t.Fatalf("key = %q, want the most recent message's key", res.Key)
	}
}

func TestRunNotifyFailureIsolation(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", BotID: "B1"})
	n := &fakeNotifier{ok: false}
	p := newTestPipeline(gw, n, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeNotifyFailed {
		t.Fatalf("outcome = %s, want notify_failed", res.Outcome)
	}
	if len(gw.msgs["CLOG"]) != 0 {
		t.Fatal("ledger entry recorded despite failed notification")
	}

	// Re-running must behave identically: event stays reprocessable.
	n.ok = true
	res2, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if res2.Outcome != OutcomeProcessed {
		t.Fatalf("second outcome = %s, want processed", res2.Outcome)
	}
}

func TestRunSourceChannelMissingIsFatal(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{
		channels: []slack.Channel{{ID: "C1", Name: "general"}},
		msgs:     map[string][]slack.Message{},
	}
	p := newTestPipeline(gw, &fakeNotifier{ok: true}, ModeProduction)

	res, err := p.Run(context.Background(), "test")
	if err == nil {
		t.Fatal("expected fatal error for missing source channel")
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	// The non-mandatory log channel was still created (settle-all, not fail-fast).
	found := false
	for _, ch := range gw.channels {
		if ch.Name == "sales-bot-processed-log" {
			found = true
		}
	}
	if !found {
		t.Fatal("log channel resolution should have proceeded despite source failure")
	}
}

func TestRunRecordFailureStillCompletes(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", BotID: "B1"})
	n := &fakeNotifier{ok: true}
	p := newTestPipeline(gw, n, ModeProduction)
	gw.sendErr = errors.New("post failed")

	res, err := p.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %s, want processed", res.Outcome)
	}
	if res.RecordErr == "" {
		t.Fatal("expected RecordErr to be surfaced")
	}
}

func TestRunPublishesOutcome(t *testing.T) {
	t.Parallel()
	gw := sourceGateway(slack.Message{Text: "Bob just closed WidgetCo for $500", BotID: "B1"})
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	r := channels.NewResolver(gw, logx.Nop())
	l := ledger.New(gw, 100, logx.Nop())
	p := New(Config{
		Mode:          ModeProduction,
		SourceChannel: "sales",
		LogChannel:    "sales-bot-processed-log",
	}, gw, r, l, &fakeNotifier{ok: true}, bus, logx.Nop())

	if _, err := p.Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != EventRunCompleted {
			t.Fatalf("event type = %s, want %s", ev.Type, EventRunCompleted)
		}
		res, ok := ev.Data.(Result)
		if !ok || res.Outcome != OutcomeProcessed {
			t.Fatalf("unexpected event data: %+v", ev.Data)
		}
	default:
		t.Fatal("no outcome event published")
	}
}
