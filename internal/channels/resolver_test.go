package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/SamPetering/slack-sales-notifier/internal/slack"
	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

type fakeGateway struct {
	channels []slack.Channel
	listErr  error

	created   []string
	createErr error
}

func (f *fakeGateway) ListChannels(ctx context.Context) ([]slack.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeGateway) CreateChannel(ctx context.Context, name string) (slack.Channel, error) {
	if f.createErr != nil {
		return slack.Channel{}, f.createErr
	}
	f.created = append(f.created, name)
	ch := slack.Channel{ID: "C_NEW", Name: name}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func TestResolveByNameSubstring(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{channels: []slack.Channel{
		{ID: "C1", Name: "general"},
		{ID: "C2", Name: "team-bot-processed-log"},
		{ID: "C3", Name: "random"},
	}}
	r := NewResolver(gw, logx.Nop())

	id, err := r.ResolveByName(context.Background(), "bot-processed")
	if err != nil {
		t.Fatalf("ResolveByName error: %v", err)
	}
	if id != "C2" {
		t.Fatalf("id = %q, want C2", id)
	}
}

func TestResolveByNameMiss(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{channels: []slack.Channel{{ID: "C1", Name: "general"}}}
	r := NewResolver(gw, logx.Nop())

	id, err := r.ResolveByName(context.Background(), "bot-processed")
	if err != nil {
		t.Fatalf("ResolveByName error: %v", err)
	}
	if id != "" {
		t.Fatalf("id = %q, want empty", id)
	}
}

func TestResolveMustExist(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{channels: []slack.Channel{{ID: "C1", Name: "general"}}}
	r := NewResolver(gw, logx.Nop())

	if _, err := r.Resolve(context.Background(), "sales"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(gw.created) != 0 {
		t.Fatalf("Resolve created channels: %v", gw.created)
	}
}

func TestResolveOrCreate(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	r := NewResolver(gw, logx.Nop())

	id, err := r.ResolveOrCreate(context.Background(), "bot-processed")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if id != "C_NEW" {
		t.Fatalf("id = %q, want C_NEW", id)
	}
	if len(gw.created) != 1 || gw.created[0] != "bot-processed" {
		t.Fatalf("expected exactly one creation of bot-processed, got %v", gw.created)
	}

	// Second call must hit the now-existing channel, not create again.
	id2, err := r.ResolveOrCreate(context.Background(), "bot-processed")
	if err != nil {
		t.Fatalf("second ResolveOrCreate error: %v", err)
	}
	if id2 != "C_NEW" || len(gw.created) != 1 {
		t.Fatalf("second call created again: id=%q creations=%v", id2, gw.created)
	}
}

func TestResolveOrCreateEmptyName(t *testing.T) {
	t.Parallel()
	r := NewResolver(&fakeGateway{}, logx.Nop())
	if _, err := r.ResolveOrCreate(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestResolveOrCreateLookupErrorSuppressed(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{listErr: errors.New("boom")}
	r := NewResolver(gw, logx.Nop())

	id, err := r.ResolveOrCreate(context.Background(), "bot-processed")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if id != "C_NEW" {
		t.Fatalf("id = %q, want C_NEW (created despite lookup failure)", id)
	}
}
