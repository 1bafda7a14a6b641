package domain

import "context"

// ReadLedger is the port for the client-local read-state store.
// Implementation lives in internal/ledger.
type ReadLedger interface {
	// ReadIDs returns the set of notification ids the user has read.
	// A missing user (guest) or an unreadable store yields an empty set.
	ReadIDs(userID string) map[string]struct{}

	// MarkRead adds a single id to the user's read set.
	MarkRead(userID, id string) error

	// MarkAllRead adds every id to the user's read set in one write.
	MarkAllRead(userID string, ids []string) error
}

// Backend is the port for the notification REST surface.
// Implementation lives in internal/backend.
type Backend interface {
	// ListNotifications fetches the user's server-origin notifications.
	ListNotifications(ctx context.Context) ([]Notification, error)

	// MarkAllRead asks the backend to flag every notification read
	// server-side. Returns the number of rows the backend reports marked.
	MarkAllRead(ctx context.Context) (int64, error)

	// OrdersByIDs resolves enrichment metadata for the given order ids.
	// Partial results are valid; missing ids are simply absent from the map.
	OrdersByIDs(ctx context.Context, ids []string) (map[string]OrderMeta, error)
}
