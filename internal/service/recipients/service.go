package recipients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/groups"
)

// Service resolves messages into recipient sets.
type Service struct {
	repo     Repository
	resolver GroupResolver
}

// NewService creates a resolver backed by the given repository and
// group resolver.
func NewService(repo Repository, resolver GroupResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Resolve computes the deduplicated recipient set for a message.
//
// Members require consent (unknown counts as consenting, refusal
// excludes) and, once a send has started, must predate the run so a
// resumed run never widens its own audience. Verified subscribers are
// appended when the message includes the mailing list, except when any
// member holds the same email — member consent rules take precedence.
// An empty targeting configuration yields an empty set, not an error.
func (s *Service) Resolve(ctx context.Context, msg *domain.Message) ([]domain.Recipient, error) {
	include := memberFilter(msg.SendingStarted)

	selected := make(map[string]domain.Member)
	if msg.SendToAll {
		all, err := s.repo.AllMembers(ctx)
		if err != nil {
			return nil, fmt.Errorf("all members: %w", err)
		}
		for _, m := range all {
			if include(m) {
				selected[m.ID] = m
			}
		}
	} else {
		for _, groupID := range msg.MemberGroupIDs {
			members, err := s.resolver.MembersOf(ctx, groupID, msg.IncludeSubgroups)
			if errors.Is(err, groups.ErrNotFound) {
				// A target group deleted after the message was written
				// contributes nothing.
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("members of group %s: %w", groupID, err)
			}
			for _, m := range members {
				if include(m) {
					selected[m.ID] = m
				}
			}
		}
	}

	out := make([]domain.Recipient, 0, len(selected))
	for id := range selected {
		m := selected[id]
		out = append(out, domain.MemberRecipient(&m))
	}

	if msg.IncludeMailingList {
		subs, err := s.subscriberRecipients(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// subscriberRecipients returns verified subscribers whose email does
// not belong to any member.
func (s *Service) subscriberRecipients(ctx context.Context) ([]domain.Recipient, error) {
	memberEmails, err := s.repo.MemberEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("member emails: %w", err)
	}
	taken := make(map[string]bool, len(memberEmails))
	for _, e := range memberEmails {
		taken[strings.ToLower(e)] = true
	}

	subs, err := s.repo.VerifiedSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("verified subscribers: %w", err)
	}

	var out []domain.Recipient
	seen := make(map[string]bool)
	for i := range subs {
		email := strings.ToLower(subs[i].Email)
		if taken[email] || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, domain.SubscriberRecipient(&subs[i]))
	}
	return out, nil
}

// memberFilter builds the consent-and-cutoff predicate for one run.
func memberFilter(startedAt *time.Time) func(domain.Member) bool {
	return func(m domain.Member) bool {
		if !m.Consent.MayEmail() {
			return false
		}
		if startedAt != nil && !m.Added.Before(*startedAt) {
			return false
		}
		return true
	}
}
