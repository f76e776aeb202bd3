package groups

import (
	"context"

	"github.com/felag/mailengine/internal/domain"
)

// Repository defines the data access contract for group resolution.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Group returns a single group. Returns ErrNotFound if it doesn't exist.
	Group(ctx context.Context, id string) (*domain.MemberGroup, error)

	// GroupArena returns every group keyed by ID, with subgroup and
	// location associations populated. Closure traversals run over this
	// map rather than issuing per-node queries.
	GroupArena(ctx context.Context) (map[string]*domain.MemberGroup, error)

	// DirectMembers returns the distinct members directly associated
	// with any of the given groups.
	DirectMembers(ctx context.Context, groupIDs []string) ([]domain.Member, error)

	// MembersByLocation returns the distinct members whose jurisdiction
	// codes match any of the given prefixed codes (mun:NNNN, zip:NNN).
	MembersByLocation(ctx context.Context, codes []string) ([]domain.Member, error)

	// LocationArena returns every location code record keyed by code.
	LocationArena(ctx context.Context) (map[string]*domain.LocationCode, error)
}
