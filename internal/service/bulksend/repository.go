package bulksend

import (
	"context"
	"time"
)

// Repository mutates message lifecycle state. All three operations are
// safe under retry: MarkStarted only fires on the first entry into
// sending, the counter increment is driven by the ledger's created
// flag, and MarkComplete is a plain timestamp set.
type Repository interface {
	// MarkStarted sets sendingStarted and snapshots recipientCount,
	// but only if sendingStarted is still null. Reports whether this
	// call performed the transition.
	MarkStarted(ctx context.Context, messageID string, at time.Time, recipientCount int) (bool, error)

	// IncrementComplete bumps recipientCountComplete by one.
	IncrementComplete(ctx context.Context, messageID string) error

	// MarkComplete sets sendingComplete.
	MarkComplete(ctx context.Context, messageID string, at time.Time) error
}
