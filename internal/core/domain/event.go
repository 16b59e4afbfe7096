package domain

import "time"

type EventType string

const (
	EventProductPendingApproval EventType = "product_pending_approval"
	EventProductApproved        EventType = "product_approved"
	EventProductDenied          EventType = "product_denied"
)

// Event records one committed lifecycle transition. The transition is
// authoritative by the time an event exists; delivery is advisory and
// at-least-once, keyed by ID for dedupe.
type Event struct {
	ID         string
	Type       EventType
	Product    Product
	OccurredAt time.Time
}
