package groups_test

import (
	"context"
	"testing"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/groups"
)

// memRepo is an in-memory groups repository for unit testing.
type memRepo struct {
	groups    map[string]*domain.MemberGroup
	members   map[string][]domain.Member // groupID -> direct members
	locations map[string]*domain.LocationCode
	byCode    map[string][]domain.Member // location code -> members
}

func newMemRepo() *memRepo {
	return &memRepo{
		groups:    make(map[string]*domain.MemberGroup),
		members:   make(map[string][]domain.Member),
		locations: make(map[string]*domain.LocationCode),
		byCode:    make(map[string][]domain.Member),
	}
}

func (m *memRepo) Group(_ context.Context, id string) (*domain.MemberGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, groups.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memRepo) GroupArena(_ context.Context) (map[string]*domain.MemberGroup, error) {
	return m.groups, nil
}

func (m *memRepo) DirectMembers(_ context.Context, groupIDs []string) ([]domain.Member, error) {
	seen := map[string]bool{}
	var out []domain.Member
	for _, id := range groupIDs {
		for _, mem := range m.members[id] {
			if !seen[mem.ID] {
				seen[mem.ID] = true
				out = append(out, mem)
			}
		}
	}
	return out, nil
}

func (m *memRepo) MembersByLocation(_ context.Context, codes []string) ([]domain.Member, error) {
	seen := map[string]bool{}
	var out []domain.Member
	for _, c := range codes {
		for _, mem := range m.byCode[c] {
			if !seen[mem.ID] {
				seen[mem.ID] = true
				out = append(out, mem)
			}
		}
	}
	return out, nil
}

func (m *memRepo) LocationArena(_ context.Context) (map[string]*domain.LocationCode, error) {
	return m.locations, nil
}

func (m *memRepo) addGroup(id string, combination domain.CombinationMethod, subgroups ...string) {
	m.groups[id] = &domain.MemberGroup{
		ID:              id,
		Name:            id,
		Techname:        id,
		AutoSubgroupIDs: subgroups,
		Combination:     combination,
	}
}

func member(id string) domain.Member {
	return domain.Member{ID: id, Email: id + "@example.org", Consent: domain.ConsentGranted}
}

func TestResolveGroup_NoSubgroups(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("a", domain.CombinationUnion, "b")
	repo.addGroup("b", domain.CombinationUnion)

	svc := groups.NewService(repo)
	ids, err := svc.ResolveGroup(context.Background(), "a", false)
	if err != nil {
		t.Fatalf("ResolveGroup() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("ResolveGroup(a, false) = %v, want [a]", ids)
	}
}

func TestResolveGroup_CycleTerminates(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("a", domain.CombinationUnion, "b")
	repo.addGroup("b", domain.CombinationUnion, "a")

	svc := groups.NewService(repo)
	ids, err := svc.ResolveGroup(context.Background(), "a", true)
	if err != nil {
		t.Fatalf("ResolveGroup() error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ResolveGroup(a, true) with cycle = %v, want [a b]", ids)
	}
}

func TestResolveGroup_SelfReference(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("a", domain.CombinationUnion, "a")

	svc := groups.NewService(repo)
	ids, err := svc.ResolveGroup(context.Background(), "a", true)
	if err != nil {
		t.Fatalf("ResolveGroup() error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("ResolveGroup(a→a) = %v, want [a]", ids)
	}
}

func TestResolveGroup_UnknownGroup(t *testing.T) {
	svc := groups.NewService(newMemRepo())
	if _, err := svc.ResolveGroup(context.Background(), "missing", true); err != groups.ErrNotFound {
		t.Errorf("ResolveGroup(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMembersOf_SubgroupClosure(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("parent", domain.CombinationUnion, "child")
	repo.addGroup("child", domain.CombinationUnion, "grandchild")
	repo.addGroup("grandchild", domain.CombinationUnion)
	repo.members["parent"] = []domain.Member{member("m1")}
	repo.members["child"] = []domain.Member{member("m2")}
	repo.members["grandchild"] = []domain.Member{member("m3")}

	svc := groups.NewService(repo)

	got, err := svc.MembersOf(context.Background(), "parent", true)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("MembersOf(parent, true) returned %d members, want 3", len(got))
	}

	got, err = svc.MembersOf(context.Background(), "parent", false)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("MembersOf(parent, false) = %v, want [m1]", got)
	}
}

func TestMembersOf_UnionCombination(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("g", domain.CombinationUnion)
	repo.groups["g"].LocationCodes = []string{"mun:1000"}
	repo.members["g"] = []domain.Member{member("m1")}
	repo.byCode["mun:1000"] = []domain.Member{member("m2")}

	svc := groups.NewService(repo)
	got, err := svc.MembersOf(context.Background(), "g", false)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("union MembersOf() = %v, want [m1 m2]", got)
	}
}

func TestMembersOf_IntersectionCombination(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("g", domain.CombinationIntersection)
	repo.groups["g"].LocationCodes = []string{"mun:1000"}
	repo.members["g"] = []domain.Member{member("m1")}
	repo.byCode["mun:1000"] = []domain.Member{member("m2")}

	svc := groups.NewService(repo)
	got, err := svc.MembersOf(context.Background(), "g", false)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("disjoint intersection MembersOf() = %v, want empty", got)
	}

	// Overlapping sets keep the overlap.
	repo.byCode["mun:1000"] = []domain.Member{member("m1"), member("m2")}
	got, err = svc.MembersOf(context.Background(), "g", false)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("overlapping intersection MembersOf() = %v, want [m1]", got)
	}
}

func TestMembersOf_LocationCodeExpansion(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("g", domain.CombinationUnion)
	repo.groups["g"].LocationCodes = []string{"mun:1000"}
	// Municipality 1000 expands into a postal code; the expansion graph
	// loops back to exercise cycle tolerance.
	repo.locations["mun:1000"] = &domain.LocationCode{Code: "mun:1000", AutoCodes: []string{"zip:101"}}
	repo.locations["zip:101"] = &domain.LocationCode{Code: "zip:101", AutoCodes: []string{"mun:1000"}}
	repo.byCode["zip:101"] = []domain.Member{member("m2")}

	svc := groups.NewService(repo)
	got, err := svc.MembersOf(context.Background(), "g", false)
	if err != nil {
		t.Fatalf("MembersOf() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m2" {
		t.Errorf("expanded-code MembersOf() = %v, want [m2]", got)
	}
}

func TestAuxiliaryPredicate(t *testing.T) {
	repo := newMemRepo()
	repo.addGroup("g", domain.CombinationUnion)
	repo.groups["g"].LocationCodes = []string{"zip:101"}

	svc := groups.NewService(repo)
	pred, err := svc.AuxiliaryPredicate(context.Background(), "g")
	if err != nil {
		t.Fatalf("AuxiliaryPredicate() error: %v", err)
	}

	in := member("m1")
	in.PostalCode = "101"
	out := member("m2")
	out.PostalCode = "105"

	if !pred(in) {
		t.Error("predicate should match member in zip 101")
	}
	if pred(out) {
		t.Error("predicate should not match member in zip 105")
	}

	// A group without location codes matches nothing.
	repo.addGroup("plain", domain.CombinationUnion)
	pred, err = svc.AuxiliaryPredicate(context.Background(), "plain")
	if err != nil {
		t.Fatalf("AuxiliaryPredicate() error: %v", err)
	}
	if pred(in) {
		t.Error("predicate for group without codes should match nothing")
	}
}
