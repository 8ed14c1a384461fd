// Package pipeline wires channel resolution, message filtering, parsing,
// dedup, and the downstream notification into one run per trigger.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/SamPetering/slack-sales-notifier/internal/deal"
	"github.com/SamPetering/slack-sales-notifier/internal/eventbus"
	"github.com/SamPetering/slack-sales-notifier/internal/notify"
	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// Mode switches the message filter between bot-authored-only (production)
// and anything-that-parses (development, so the flow can be exercised by
// typing the announcement by hand).
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeProcessed: event notified and (best-effort) recorded.
	OutcomeProcessed Outcome = "processed"
	// OutcomeDuplicate: idempotency key already present in the ledger.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNoEvent: no actionable message in the source channel.
	OutcomeNoEvent Outcome = "no_event"
	// OutcomeNotifyFailed: downstream notification declined; nothing recorded,
	// the event stays reprocessable.
	OutcomeNotifyFailed Outcome = "notify_failed"
	// OutcomeFailed: a required step failed (channel resolution, transport).
	OutcomeFailed Outcome = "failed"
)

// EventRunCompleted is published on the bus after every run, with a Result
// as Data.
const EventRunCompleted = "pipeline.run_completed"

// Result is the audit record of one run.
type Result struct {
	Trigger string        `json:"trigger"`
	Outcome Outcome       `json:"outcome"`
	Key     string        `json:"key,omitempty"`
	Err     string        `json:"err,omitempty"`
	// RecordErr is set when the notification succeeded but the ledger write
	// did not. The run still counts as complete; the event may be notified
	// again on the next trigger (at-least-once).
	RecordErr string        `json:"record_err,omitempty"`
	Took      time.Duration `json:"took"`
}

type Config struct {
	Mode          string
	SourceChannel string
	LogChannel    string
	// HistoryLimit caps the source-channel fetch (default 10).
	HistoryLimit int
}

// Resolver resolves channel names to IDs.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
	ResolveOrCreate(ctx context.Context, name string) (string, error)
}

// Ledger is the dedup log over the processed-events channel.
type Ledger interface {
	HasKey(ctx context.Context, logChannelID, key string) (bool, error)
	Record(ctx context.Context, logChannelID, key string) error
}

// Gateway is the slice of the Slack client the pipeline itself needs.
type Gateway interface {
	GetChannelMessages(ctx context.Context, channelID string, limit int) ([]slack.Message, error)
}

type Pipeline struct {
	cfg      Config
	gw       Gateway
	resolver Resolver
	ledger   Ledger
	notifier notify.Notifier
	bus      eventbus.Bus
	log      logx.Logger
}

func New(cfg Config, gw Gateway, resolver Resolver, ledger Ledger, notifier notify.Notifier, bus eventbus.Bus, log logx.Logger) *Pipeline {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{cfg: cfg, gw: gw, resolver: resolver, ledger: ledger, notifier: notifier, bus: bus, log: log}
}

// Run executes one end-to-end pass. trigger names what fired it ("http",
// "schedule", ...) and only feeds logging and the audit record.
//
// Soft exits (no actionable message, already processed) return a nil error.
func (p *Pipeline) Run(ctx context.Context, trigger string) (Result, error) {
	started := time.Now()
	res, err := p.run(ctx, trigger)
	res.Trigger = trigger
	res.Took = time.Since(started)
	if err != nil {
		res.Err = err.Error()
	}
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: EventRunCompleted, Data: res})
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, trigger string) (Result, error) {
	log := p.log.With(logx.String("trigger", trigger))

	// RESOLVE_CHANNELS: both lookups run concurrently and both are allowed to
	// finish (settle-all, not fail-fast). Only the source channel is
	// mandatory; it must pre-exist.
	sourceID, logID := p.resolveChannels(ctx, log)
	if sourceID == "" {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("source channel %q did not resolve", p.cfg.SourceChannel)
	}

	// FETCH_SOURCE_MESSAGES
	msgs, err := p.gw.GetChannelMessages(ctx, sourceID, p.cfg.HistoryLimit)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("fetch source messages: %w", err)
	}

	// FILTER_AND_PARSE: take the most recent surviving message only.
	ev, ok := p.firstEvent(msgs)
	if !ok {
		log.Info("no actionable message in source channel")
		return Result{Outcome: OutcomeNoEvent}, nil
	}
	key := ev.Key()

	// CHECK_DEDUP
	if logID == "" {
		return Result{Outcome: OutcomeFailed, Key: key}, fmt.Errorf("log channel %q did not resolve", p.cfg.LogChannel)
	}
	seen, err := p.ledger.HasKey(ctx, logID, key)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Key: key}, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		log.Info("event already processed", logx.String("key", key))
		return Result{Outcome: OutcomeDuplicate, Key: key}, nil
	}

	// NOTIFY: on failure nothing is recorded so a future run can retry.
	notified, err := p.notifier.Notify(ctx, key)
	if err != nil || !notified {
		log.Error("downstream notification failed", logx.String("key", key), logx.Err(err))
		return Result{Outcome: OutcomeNotifyFailed, Key: key}, nil
	}
	log.Info("deal processed",
		logx.String("closer", ev.Closer),
		logx.String("customer", ev.Customer),
		logx.String("amount", ev.Amount),
	)

	// RECORD: a failed write is surfaced but does not fail the run. The same
	// event may be re-notified on the next trigger (at-least-once).
	res := Result{Outcome: OutcomeProcessed, Key: key}
	if err := p.ledger.Record(ctx, logID, key); err != nil {
		log.Error("ledger write failed; event may be reprocessed", logx.String("key", key), logx.Err(err))
		res.RecordErr = err.Error()
	}
	return res, nil
}

// resolveChannels fans out the two resolutions, joins both, and logs each
// failure individually. A branch failure leaves its ID empty.
func (p *Pipeline) resolveChannels(ctx context.Context, log logx.Logger) (sourceID, logID string) {
	type outcome struct {
		id  string
		err error
	}
	var src, lg outcome
	done := make(chan struct{})

	go func() {
		src.id, src.err = p.resolver.Resolve(ctx, p.cfg.SourceChannel)
		done <- struct{}{}
	}()
	go func() {
		lg.id, lg.err = p.resolver.ResolveOrCreate(ctx, p.cfg.LogChannel)
		done <- struct{}{}
	}()
	<-done
	<-done

	if src.err != nil {
		log.Error("source channel resolution failed", logx.String("name", p.cfg.SourceChannel), logx.Err(src.err))
	}
	if lg.err != nil {
		log.Error("log channel resolution failed", logx.String("name", p.cfg.LogChannel), logx.Err(lg.err))
	}
	return src.id, lg.id
}

// firstEvent applies the mode-dependent filter and parses the first (most
// recent) surviving message. Slack history arrives newest first.
func (p *Pipeline) firstEvent(msgs []slack.Message) (deal.Event, bool) {
	accept := p.filter()
	for _, m := range msgs {
		if !accept(m) {
			continue
		}
		return deal.Parse(m.Text)
	}
	return deal.Event{}, false
}

func (p *Pipeline) filter() func(slack.Message) bool {
	if p.cfg.Mode == ModeDevelopment {
		return func(m slack.Message) bool { return deal.IsAnnouncement(m.Text) }
	}
	// Production only trusts the CRM integration's own bot messages.
	return func(m slack.Message) bool { return m.FromBot() && deal.IsAnnouncement(m.Text) }
}
