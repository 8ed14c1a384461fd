// Package ledger treats a dedicated Slack channel as an append-only
// idempotency log. A key is "recorded" when any message in the most recent
// window of the log channel contains it as a substring.
//
// The scan window is bounded: events processed further back than ScanLimit
// messages are invisible to HasKey and could in principle be reprocessed.
// That is a documented limitation of the chat-as-ledger approach, not a bug;
// exactly-once over unbounded history needs a real key-value store.
package ledger

import (
	"context"
	"strings"

	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

const defaultScanLimit = 100

// Gateway is the slice of the Slack client the ledger needs.
type Gateway interface {
	GetChannelMessages(ctx context.Context, channelID string, limit int) ([]slack.Message, error)
	SendMessage(ctx context.Context, channel, text string) error
}

type Ledger struct {
	gw        Gateway
	scanLimit int
	log       logx.Logger
}

func New(gw Gateway, scanLimit int, log logx.Logger) *Ledger {
	if scanLimit <= 0 {
		scanLimit = defaultScanLimit
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{gw: gw, scanLimit: scanLimit, log: log}
}

// HasKey reports whether key appears in the recent window of the log channel.
// Substring match, not equality: keys are colon-joined multi-field strings,
// which in practice keeps them from being accidental substrings of each other.
func (l *Ledger) HasKey(ctx context.Context, logChannelID, key string) (bool, error) {
	msgs, err := l.gw.GetChannelMessages(ctx, logChannelID, l.scanLimit)
	if err != nil {
		return false, err
	}
	for _, m := range msgs {
		if strings.Contains(m.Text, key) {
			return true, nil
		}
	}
	return false, nil
}

// Record posts the key verbatim to the log channel. Failures are returned to
// the caller and not retried; a lost write means the event stays
// reprocessable.
func (l *Ledger) Record(ctx context.Context, logChannelID, key string) error {
	if err := l.gw.SendMessage(ctx, logChannelID, key); err != nil {
		return err
	}
	l.log.Debug("ledger entry recorded", logx.String("key", key))
	return nil
}
