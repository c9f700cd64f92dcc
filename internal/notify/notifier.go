// Package notify fans destination changes out to downstream collaborators.
// Deliveries are fire-and-forget: a failure is logged and never surfaces to
// the conversation turn that triggered it.
package notify

import "context"

// Event describes a confirmed destination change for one user.
type Event struct {
	UserID      string `json:"user_id"`
	Destination string `json:"destination"`
}

// Notifier delivers one event to one collaborator.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}
