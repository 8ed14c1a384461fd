//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Desktop sends notifications on macOS using osascript.
type Desktop struct{}

func (d *Desktop) Notify(ctx context.Context, eventID string) (bool, error) {
	script := fmt.Sprintf(`display notification %q with title "Deal closed"`, sanitize(eventID))
	err := exec.CommandContext(ctx, "osascript", "-e", script).Run()
	return err == nil, err
}

// Available reports whether osascript is present (it always is on macOS).
func (d *Desktop) Available() bool {
	_, err := exec.LookPath("osascript")
	return err == nil
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
