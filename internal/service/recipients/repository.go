package recipients

import (
	"context"

	"github.com/felag/mailengine/internal/domain"
)

// Repository defines the data access contract for recipient resolution.
// Implementations must be safe for concurrent use.
type Repository interface {
	// AllMembers returns every member in the registry.
	AllMembers(ctx context.Context) ([]domain.Member, error)

	// MemberEmails returns the lowercased email of every member,
	// regardless of consent. Used to keep subscribers sharing an email
	// with any member out of mailing-list sends.
	MemberEmails(ctx context.Context) ([]string, error)

	// VerifiedSubscribers returns every verified mailing-list subscriber.
	VerifiedSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// GroupResolver is the slice of the groups service this package needs.
type GroupResolver interface {
	MembersOf(ctx context.Context, groupID string, includeSubgroups bool) ([]domain.Member, error)
}
