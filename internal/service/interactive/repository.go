package interactive

import (
	"context"
	"time"

	"github.com/felag/mailengine/internal/domain"
)

// Repository is the persistence surface for templates, token lookup
// and the link-consumption effects. Every effect method applies its
// state change and clears the owning record's token in one
// transaction; a token must never survive its effect.
type Repository interface {
	// ActiveTemplate returns the single active template for t, or
	// ErrTemplateMissing when none exists.
	ActiveTemplate(ctx context.Context, t domain.InteractiveType) (*domain.InteractiveMessage, error)

	// TemplateHasDeliveries reports whether any interactive delivery
	// references the template row.
	TemplateHasDeliveries(ctx context.Context, templateID string) (bool, error)

	// DeactivateType clears the active flag on every template of t.
	DeactivateType(ctx context.Context, t domain.InteractiveType) error

	InsertTemplate(ctx context.Context, im *domain.InteractiveMessage) error
	UpdateTemplate(ctx context.Context, im *domain.InteractiveMessage) error

	// RecipientByToken finds the member or subscriber owning token,
	// or ErrTokenNotFound.
	RecipientByToken(ctx context.Context, token string) (domain.Recipient, error)

	// VerifyMember marks the member's email verified and clears its token.
	VerifyMember(ctx context.Context, memberID string) error

	// DeleteMember removes a pending member registration entirely.
	DeleteMember(ctx context.Context, memberID string) error

	// RevokeMemberConsent sets the member's consent to refused,
	// records reason, and clears its token.
	RevokeMemberConsent(ctx context.Context, memberID, reason string) error

	// VerifySubscriber marks the subscriber verified and clears its token.
	VerifySubscriber(ctx context.Context, subscriberID string, at time.Time) error

	// DeleteSubscriber removes the subscriber entirely.
	DeleteSubscriber(ctx context.Context, subscriberID string) error

	RecordDelivery(ctx context.Context, d *domain.InteractiveDelivery) error
}
