package port

import "context"

// Messenger delivers text to a chat target (a user id or a channel id).
// Delivery is best-effort; a failure never rolls back the lifecycle
// transition that triggered it.
type Messenger interface {
	Send(ctx context.Context, target, text string) error
}
