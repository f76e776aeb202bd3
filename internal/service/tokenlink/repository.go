package tokenlink

import (
	"context"
	"time"

	"github.com/felag/mailengine/internal/domain"
)

// Repository defines the data access contract for tokens and short
// URLs. Implementations must be safe for concurrent use and must hold
// uniqueness constraints on tokens (shared across the member and
// subscriber tables) and on short codes.
type Repository interface {
	// TokenInUse reports whether any member or subscriber holds the token.
	TokenInUse(ctx context.Context, token string) (bool, error)

	// SetMemberToken persists a member's token and issue time.
	// Returns ErrDuplicate if the token collides.
	SetMemberToken(ctx context.Context, memberID, token string, issuedAt time.Time) error

	// SetSubscriberToken persists a subscriber's token and issue time.
	// Returns ErrDuplicate if the token collides.
	SetSubscriberToken(ctx context.Context, subscriberID, token string, issuedAt time.Time) error

	// ShortURLByCode returns the mapping for a code, ErrNotFound if absent.
	ShortURLByCode(ctx context.Context, code string) (*domain.ShortURL, error)

	// InsertShortURL persists a new mapping. Returns ErrDuplicate if
	// the code collides.
	InsertShortURL(ctx context.Context, su *domain.ShortURL) error

	// PurgeExpiredShortURLs deletes mappings added before the cutoff.
	PurgeExpiredShortURLs(ctx context.Context, before time.Time) (int64, error)
}
