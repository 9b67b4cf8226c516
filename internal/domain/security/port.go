package security

import "context"

// EventLog is a bounded per-user event list, newest first. Append trims to
// the cap and refreshes the list TTL.
type EventLog interface {
	Append(ctx context.Context, ev Event) error
	Recent(ctx context.Context, userID int64) ([]Event, error)
}
