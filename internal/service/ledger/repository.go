package ledger

import (
	"context"

	"github.com/felag/mailengine/internal/domain"
)

// Repository defines the data access contract for delivery records.
// Implementations must be safe for concurrent use and must enforce a
// uniqueness constraint over (message, recipient kind, recipient id).
type Repository interface {
	// Deliveries returns all delivery rows for a message.
	Deliveries(ctx context.Context, messageID string) ([]domain.MessageDelivery, error)

	// Insert appends one delivery row. Returns false without error when
	// the row already exists, so retries never double-count.
	Insert(ctx context.Context, d domain.MessageDelivery) (bool, error)

	// Purge deletes all delivery rows for a message and reports how
	// many were removed.
	Purge(ctx context.Context, messageID string) (int64, error)
}
