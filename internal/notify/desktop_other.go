//go:build !linux && !darwin

package notify

import "context"

// Desktop is unavailable on platforms without a known notification command.
type Desktop struct{}

func (d *Desktop) Notify(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (d *Desktop) Available() bool { return false }
