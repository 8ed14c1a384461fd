//go:build linux

package notify

import (
	"context"
	"os/exec"
)

// Desktop sends notifications on Linux using notify-send.
type Desktop struct{}

func (d *Desktop) Notify(ctx context.Context, eventID string) (bool, error) {
	err := exec.CommandContext(ctx, "notify-send", "Deal closed", eventID).Run()
	return err == nil, err
}

// Available reports whether notify-send is installed.
func (d *Desktop) Available() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}
