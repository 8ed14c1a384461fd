// Package channels maps human-readable channel names to stable IDs.
package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

// ErrNotFound is returned by Resolve when no channel name contains the
// requested substring.
var ErrNotFound = errors.New("channel not found")

// Gateway is the slice of the Slack client the resolver needs.
type Gateway interface {
	ListChannels(ctx context.Context) ([]slack.Channel, error)
	CreateChannel(ctx context.Context, name string) (slack.Channel, error)
}

type Resolver struct {
	gw  Gateway
	log logx.Logger
}

func NewResolver(gw Gateway, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{gw: gw, log: log}
}

// ResolveByName returns the ID of the first channel whose name contains
// substr. A miss is ("", nil); only transport failures produce an error.
func (r *Resolver) ResolveByName(ctx context.Context, substr string) (string, error) {
	chans, err := r.gw.ListChannels(ctx)
	if err != nil {
		return "", err
	}
	for _, ch := range chans {
		if strings.Contains(ch.Name, substr) {
			return ch.ID, nil
		}
	}
	return "", nil
}

// Resolve is the must-exist variant used for channels this system monitors
// but does not own. Auto-creating the source of truth would be wrong, so a
// miss is an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	id, err := r.ResolveByName(ctx, name)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return id, nil
}

// ResolveOrCreate looks the channel up by name and creates it when absent.
// Lookup errors are suppressed (creation is attempted anyway); an empty name
// or a failed creation is an error.
func (r *Resolver) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("channel name is empty")
	}
	id, err := r.ResolveByName(ctx, name)
	if err != nil {
		r.log.Warn("channel lookup failed, attempting create", logx.String("name", name), logx.Err(err))
	}
	if id != "" {
		return id, nil
	}
	ch, err := r.gw.CreateChannel(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", name, err)
	}
	r.log.Info("channel created", logx.String("name", name), logx.String("id", ch.ID))
	return ch.ID, nil
}
