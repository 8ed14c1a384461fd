// Package notify delivers the downstream hardware notification for a
// processed deal. The protocol behind the notification is out of scope;
// callers get a single async capability: Notify(eventID) -> bool.
// Platform-specific desktop backends live in desktop_linux.go,
// desktop_darwin.go, and desktop_other.go.
package notify

import (
	"context"
	"fmt"
)

// Notifier triggers the downstream side-effect for one event. The boolean is
// the success signal the pipeline keys off; err carries detail for logging.
type Notifier interface {
	Notify(ctx context.Context, eventID string) (bool, error)
}

// Stub always succeeds. It is the default driver and what the production
// deployment used while the hardware integration was pending.
type Stub struct{}

func (Stub) Notify(ctx context.Context, eventID string) (bool, error) {
	return true, nil
}

// Open returns the notifier for the configured driver.
// Supported: "stub" (default), "desktop".
func Open(driver string) (Notifier, error) {
	switch driver {
	case "", "stub":
		return Stub{}, nil
	case "desktop":
		d := &Desktop{}
		if !d.Available() {
			return nil, fmt.Errorf("desktop notifier not available on this system")
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", driver)
	}
}
