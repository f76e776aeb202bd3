package recipients_test

import (
	"context"
	"testing"
	"time"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/groups"
	"github.com/felag/mailengine/internal/service/recipients"
)

type memRepo struct {
	members     []domain.Member
	subscribers []domain.Subscriber
}

func (m *memRepo) AllMembers(_ context.Context) ([]domain.Member, error) {
	return m.members, nil
}

func (m *memRepo) MemberEmails(_ context.Context) ([]string, error) {
	var out []string
	for _, mem := range m.members {
		out = append(out, mem.Email)
	}
	return out, nil
}

func (m *memRepo) VerifiedSubscribers(_ context.Context) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for _, s := range m.subscribers {
		if s.Verified {
			out = append(out, s)
		}
	}
	return out, nil
}

// memResolver maps group IDs to fixed member lists.
type memResolver struct {
	groups map[string][]domain.Member
}

func (r *memResolver) MembersOf(_ context.Context, groupID string, _ bool) ([]domain.Member, error) {
	ms, ok := r.groups[groupID]
	if !ok {
		return nil, groups.ErrNotFound
	}
	return ms, nil
}

func member(id, email string, consent domain.Consent) domain.Member {
	return domain.Member{
		ID:      id,
		Email:   email,
		Consent: consent,
		Added:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolve_ConsentFiltering(t *testing.T) {
	repo := &memRepo{members: []domain.Member{
		member("m1", "m1@example.org", domain.ConsentGranted),
		member("m2", "m2@example.org", domain.ConsentRefused),
		member("m3", "m3@example.org", domain.ConsentUnknown),
	}}
	svc := recipients.NewService(repo, &memResolver{})

	got, err := svc.Resolve(context.Background(), &domain.Message{SendToAll: true})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Resolve() returned %d recipients, want 2", len(got))
	}
	for _, r := range got {
		if r.Member.Consent == domain.ConsentRefused {
			t.Errorf("refused member %s must never be resolved", r.Member.ID)
		}
	}
}

func TestResolve_GroupUnionDeduplicates(t *testing.T) {
	shared := member("m1", "m1@example.org", domain.ConsentGranted)
	resolver := &memResolver{groups: map[string][]domain.Member{
		"a": {shared, member("m2", "m2@example.org", domain.ConsentGranted)},
		"b": {shared, member("m3", "m3@example.org", domain.ConsentRefused)},
	}}
	svc := recipients.NewService(&memRepo{}, resolver)

	msg := &domain.Message{MemberGroupIDs: []string{"a", "b"}}
	got, err := svc.Resolve(context.Background(), msg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Resolve() returned %d recipients, want 2 (m1 deduplicated, m3 refused)", len(got))
	}
}

func TestResolve_DeletedGroupContributesNothing(t *testing.T) {
	resolver := &memResolver{groups: map[string][]domain.Member{
		"a": {member("m1", "m1@example.org", domain.ConsentGranted)},
	}}
	svc := recipients.NewService(&memRepo{}, resolver)

	msg := &domain.Message{MemberGroupIDs: []string{"a", "gone"}}
	got, err := svc.Resolve(context.Background(), msg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Resolve() returned %d recipients, want 1", len(got))
	}
}

func TestResolve_EmptyTargeting(t *testing.T) {
	svc := recipients.NewService(&memRepo{}, &memResolver{})
	got, err := svc.Resolve(context.Background(), &domain.Message{})
	if err != nil {
		t.Fatalf("empty targeting should not error, got: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty targeting should resolve to empty set, got %d", len(got))
	}
}

func TestResolve_MailingListAppended(t *testing.T) {
	repo := &memRepo{
		members: []domain.Member{member("m1", "m1@example.org", domain.ConsentGranted)},
		subscribers: []domain.Subscriber{
			{ID: "s1", Email: "s1@example.org", Verified: true},
			{ID: "s2", Email: "s2@example.org", Verified: false},
		},
	}
	svc := recipients.NewService(repo, &memResolver{})

	got, err := svc.Resolve(context.Background(), &domain.Message{SendToAll: true, IncludeMailingList: true})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Resolve() returned %d recipients, want member + verified subscriber", len(got))
	}
}

func TestResolve_MemberTakesPrecedenceOverSubscriber(t *testing.T) {
	repo := &memRepo{
		members: []domain.Member{
			member("m1", "Shared@Example.org", domain.ConsentRefused),
		},
		subscribers: []domain.Subscriber{
			{ID: "s1", Email: "shared@example.org", Verified: true},
		},
	}
	svc := recipients.NewService(repo, &memResolver{})

	got, err := svc.Resolve(context.Background(), &domain.Message{SendToAll: true, IncludeMailingList: true})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	// The member refused consent and the subscriber shares the email:
	// nobody receives.
	if len(got) != 0 {
		t.Errorf("Resolve() = %d recipients, want 0 (member consent wins over subscriber)", len(got))
	}
}

func TestResolve_RunStartCutoff(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	early := member("m1", "m1@example.org", domain.ConsentGranted)
	late := member("m2", "m2@example.org", domain.ConsentGranted)
	late.Added = started.Add(time.Hour)

	repo := &memRepo{members: []domain.Member{early, late}}
	svc := recipients.NewService(repo, &memResolver{})

	msg := &domain.Message{SendToAll: true, SendingStarted: &started}
	got, err := svc.Resolve(context.Background(), msg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(got) != 1 || got[0].Member.ID != "m1" {
		t.Errorf("members added after run start must be excluded, got %d recipients", len(got))
	}
}

func TestResolve_Deterministic(t *testing.T) {
	repo := &memRepo{members: []domain.Member{
		member("m2", "m2@example.org", domain.ConsentGranted),
		member("m1", "m1@example.org", domain.ConsentGranted),
	}}
	svc := recipients.NewService(repo, &memResolver{})

	a, _ := svc.Resolve(context.Background(), &domain.Message{SendToAll: true})
	b, _ := svc.Resolve(context.Background(), &domain.Message{SendToAll: true})
	if len(a) != len(b) {
		t.Fatal("repeated Resolve() should agree on size")
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			t.Errorf("Resolve() order differs at %d: %s vs %s", i, a[i].Key(), b[i].Key())
		}
	}
}
