package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/felag/mailengine/internal/domain"
)

// Service exposes the delivery ledger to the bulk sender.
type Service struct {
	repo Repository
}

// NewService creates a ledger service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AlreadyDelivered returns the recipient keys with a persisted delivery
// row for this message.
func (s *Service) AlreadyDelivered(ctx context.Context, messageID string) (map[string]bool, error) {
	rows, err := s.repo.Deliveries(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("deliveries for %s: %w", messageID, err)
	}
	keys := make(map[string]bool, len(rows))
	for _, d := range rows {
		keys[string(d.RecipientKind)+":"+d.RecipientID] = true
	}
	return keys, nil
}

// RecordDelivery appends the delivery row for one recipient. Returns
// whether a row was created; false means the pair was already recorded
// and the caller must not count it again.
func (s *Service) RecordDelivery(ctx context.Context, messageID string, r domain.Recipient, at time.Time) (bool, error) {
	d := domain.MessageDelivery{
		MessageID:   messageID,
		Email:       r.Email(),
		DeliveredAt: at,
	}
	switch r.Kind {
	case domain.RecipientMember:
		d.RecipientKind = domain.RecipientMember
		d.RecipientID = r.Member.ID
	case domain.RecipientSubscriber:
		d.RecipientKind = domain.RecipientSubscriber
		d.RecipientID = r.Subscriber.ID
	default:
		return false, fmt.Errorf("record delivery: unknown recipient kind %q", r.Kind)
	}

	created, err := s.repo.Insert(ctx, d)
	if err != nil {
		return false, fmt.Errorf("record delivery %s/%s: %w", messageID, r.Key(), err)
	}
	return created, nil
}

// Purge removes every delivery row for a completed message.
func (s *Service) Purge(ctx context.Context, messageID string) error {
	if _, err := s.repo.Purge(ctx, messageID); err != nil {
		return fmt.Errorf("purge ledger for %s: %w", messageID, err)
	}
	return nil
}
