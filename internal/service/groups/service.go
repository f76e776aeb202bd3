package groups

import (
	"context"
	"fmt"
	"sort"

	"github.com/felag/mailengine/internal/domain"
)

// Service resolves group hierarchies and audiences.
type Service struct {
	repo Repository
}

// NewService creates a groups service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ResolveGroup returns the IDs of the given group plus, when
// includeSubgroups is set, every group transitively reachable through
// auto-subgroup links. The traversal keeps a visited set, so cyclic
// subgroup graphs resolve in finite time. The result is sorted.
func (s *Service) ResolveGroup(ctx context.Context, groupID string, includeSubgroups bool) ([]string, error) {
	if _, err := s.repo.Group(ctx, groupID); err != nil {
		return nil, err
	}
	if !includeSubgroups {
		return []string{groupID}, nil
	}

	arena, err := s.repo.GroupArena(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group arena: %w", err)
	}

	visited := map[string]bool{groupID: true}
	queue := []string{groupID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g, ok := arena[id]
		if !ok {
			continue
		}
		for _, sub := range g.AutoSubgroupIDs {
			if !visited[sub] {
				visited[sub] = true
				queue = append(queue, sub)
			}
		}
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MembersOf returns the distinct members in the group's audience:
// explicit associations across the (optionally expanded) subgroup
// closure, combined with auxiliary location matches by the group's
// combination method. The result is sorted by member ID so it depends
// only on stored state, never on store iteration order.
func (s *Service) MembersOf(ctx context.Context, groupID string, includeSubgroups bool) ([]domain.Member, error) {
	group, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ids, err := s.ResolveGroup(ctx, groupID, includeSubgroups)
	if err != nil {
		return nil, err
	}

	direct, err := s.repo.DirectMembers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("direct members of %s: %w", groupID, err)
	}
	byID := make(map[string]domain.Member, len(direct))
	for _, m := range direct {
		byID[m.ID] = m
	}

	// Without an auxiliary criterion the combination method is moot and
	// the explicit audience stands alone.
	if len(group.LocationCodes) > 0 {
		aux, err := s.auxiliaryMembers(ctx, group)
		if err != nil {
			return nil, err
		}
		switch group.Combination {
		case domain.CombinationIntersection:
			for id := range byID {
				if _, ok := aux[id]; !ok {
					delete(byID, id)
				}
			}
		default: // union
			for id, m := range aux {
				byID[id] = m
			}
		}
	}

	members := make([]domain.Member, 0, len(byID))
	for _, m := range byID {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// AuxiliaryPredicate returns the group's auxiliary criterion as a
// boolean predicate over members, for callers that combine criteria by
// boolean algebra instead of materializing sets. Groups without
// location codes yield a predicate that matches nothing.
func (s *Service) AuxiliaryPredicate(ctx context.Context, groupID string) (func(domain.Member) bool, error) {
	group, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(group.LocationCodes) == 0 {
		return func(domain.Member) bool { return false }, nil
	}

	codes, err := s.expandLocationCodes(ctx, group.LocationCodes)
	if err != nil {
		return nil, err
	}
	return func(m domain.Member) bool {
		for _, c := range m.LocationCodes() {
			if codes[c] {
				return true
			}
		}
		return false
	}, nil
}

// auxiliaryMembers materializes the auxiliary criterion as a member set
// keyed by ID, querying the store once with the expanded code list.
func (s *Service) auxiliaryMembers(ctx context.Context, group *domain.MemberGroup) (map[string]domain.Member, error) {
	codeSet, err := s.expandLocationCodes(ctx, group.LocationCodes)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(codeSet))
	for c := range codeSet {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	members, err := s.repo.MembersByLocation(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("location members of %s: %w", group.ID, err)
	}
	byID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return byID, nil
}

// expandLocationCodes computes the closure of the given codes over
// auto-code expansion. Like subgroups, the expansion graph is edited by
// hand and may contain cycles.
func (s *Service) expandLocationCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	arena, err := s.repo.LocationArena(ctx)
	if err != nil {
		return nil, fmt.Errorf("load location arena: %w", err)
	}

	visited := make(map[string]bool, len(codes))
	queue := append([]string(nil), codes...)
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		if visited[code] {
			continue
		}
		visited[code] = true
		if lc, ok := arena[code]; ok {
			queue = append(queue, lc.AutoCodes...)
		}
	}
	return visited, nil
}
