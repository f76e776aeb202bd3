package interactive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/felag/mailengine/internal/domain"
)

// consentRevokedReason is recorded when a member opts out through an
// unsubscribe link.
const consentRevokedReason = "revoked via email link"

// Effect describes the state transition a consumed link performed.
type Effect string

const (
	// EffectNone means nothing happened: the token was unknown,
	// already consumed, or owned by the wrong kind of recipient.
	EffectNone               Effect = "none"
	EffectMemberVerified     Effect = "member_verified"
	EffectMemberDeleted      Effect = "member_deleted"
	EffectConsentRevoked     Effect = "consent_revoked"
	EffectSubscriberVerified Effect = "subscriber_verified"
	EffectSubscriberDeleted  Effect = "subscriber_deleted"
)

// LinkService issues recipient tokens and shortens URLs. Satisfied by
// tokenlink.Service.
type LinkService interface {
	EnsureToken(ctx context.Context, r domain.Recipient) (string, error)
	Shorten(ctx context.Context, longURL string) (string, error)
}

// MailSender delivers a single email synchronously.
type MailSender interface {
	Send(ctx context.Context, to, subject, body, fromAddress string) error
}

// Config holds the immutable settings for the engine.
type Config struct {
	// BaseURL is the externally visible root that mailcommand links
	// are built under.
	BaseURL string
}

// Engine sends interactive mail and consumes its action links.
type Engine struct {
	repo   Repository
	links  LinkService
	sender MailSender
	cfg    Config
	render *liquid.Engine
	now    func() time.Time
}

// NewEngine creates an interactive message engine.
func NewEngine(repo Repository, links LinkService, sender MailSender, cfg Config) *Engine {
	return &Engine{
		repo:   repo,
		links:  links,
		sender: sender,
		cfg:    cfg,
		render: liquid.NewEngine(),
		now:    time.Now,
	}
}

// Send renders the active template for t with tokenized action links
// and delivers it to the recipient. A missing template surfaces as
// ErrTemplateMissing; the caller decides whether that is fatal.
func (e *Engine) Send(ctx context.Context, t domain.InteractiveType, r domain.Recipient) error {
	tmpl, err := e.repo.ActiveTemplate(ctx, t)
	if err != nil {
		return fmt.Errorf("look up %s template: %w", t, err)
	}

	token, err := e.links.EnsureToken(ctx, r)
	if err != nil {
		return fmt.Errorf("ensure recipient token: %w", err)
	}

	bindings := liquid.Bindings{}
	for _, action := range t.RequiredLinks() {
		long := e.mailcommandURL(t, action, token)
		short, err := e.links.Shorten(ctx, long)
		if err != nil {
			return fmt.Errorf("shorten %s link: %w", action, err)
		}
		bindings[action] = short
	}

	body, err := e.render.ParseAndRenderString(tmpl.Body, bindings)
	if err != nil {
		return fmt.Errorf("render %s template: %w", t, err)
	}

	if err := e.sender.Send(ctx, r.Email(), tmpl.Subject, body, tmpl.FromAddress); err != nil {
		return fmt.Errorf("send %s mail: %w", t, err)
	}

	delivery := &domain.InteractiveDelivery{
		ID:                   uuid.NewString(),
		InteractiveMessageID: tmpl.ID,
		Email:                r.Email(),
		DeliveredAt:          e.now(),
	}
	if err := e.repo.RecordDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("record interactive delivery: %w", err)
	}
	return nil
}

// Peek recovers the recipient owning token without applying any
// effect, for rendering a confirmation prompt. Unknown tokens return
// ErrTokenNotFound.
func (e *Engine) Peek(ctx context.Context, token string) (domain.Recipient, error) {
	r, err := e.repo.RecipientByToken(ctx, token)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("look up token owner: %w", err)
	}
	return r, nil
}

// Consume applies the effect for (t, action) to the recipient owning
// token. An unknown token is an already-consumed link: EffectNone, no
// error. The effect and the token invalidation are one transaction in
// the repository, so a link can never be consumed twice.
func (e *Engine) Consume(ctx context.Context, t domain.InteractiveType, action, token string) (Effect, error) {
	r, err := e.repo.RecipientByToken(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return EffectNone, nil
	}
	if err != nil {
		return EffectNone, fmt.Errorf("look up token owner: %w", err)
	}

	switch {
	case t == domain.InteractiveRegistrationReceived && action == "confirm":
		if r.Kind != domain.RecipientMember {
			return EffectNone, nil
		}
		if err := e.repo.VerifyMember(ctx, r.Member.ID); err != nil {
			return EffectNone, fmt.Errorf("verify member: %w", err)
		}
		return EffectMemberVerified, nil

	case t == domain.InteractiveRegistrationReceived && action == "reject":
		if r.Kind != domain.RecipientMember {
			return EffectNone, nil
		}
		if err := e.repo.DeleteMember(ctx, r.Member.ID); err != nil {
			return EffectNone, fmt.Errorf("delete member registration: %w", err)
		}
		return EffectMemberDeleted, nil

	case t == domain.InteractiveRejectEmailMessages && action == "reject":
		if r.Kind != domain.RecipientMember {
			return EffectNone, nil
		}
		if err := e.repo.RevokeMemberConsent(ctx, r.Member.ID, consentRevokedReason); err != nil {
			return EffectNone, fmt.Errorf("revoke member consent: %w", err)
		}
		return EffectConsentRevoked, nil

	case t == domain.InteractiveMailinglistConfirm && action == "confirm":
		if r.Kind != domain.RecipientSubscriber {
			return EffectNone, nil
		}
		if err := e.repo.VerifySubscriber(ctx, r.Subscriber.ID, e.now()); err != nil {
			return EffectNone, fmt.Errorf("verify subscriber: %w", err)
		}
		return EffectSubscriberVerified, nil

	case t == domain.InteractiveMailinglistConfirm && action == "reject":
		if r.Kind != domain.RecipientSubscriber {
			return EffectNone, nil
		}
		if err := e.repo.DeleteSubscriber(ctx, r.Subscriber.ID); err != nil {
			return EffectNone, fmt.Errorf("delete subscriber: %w", err)
		}
		return EffectSubscriberDeleted, nil
	}

	return EffectNone, fmt.Errorf("%w: %s/%s", ErrUnknownAction, t, action)
}

// SaveTemplate validates and persists a template. A template that has
// already produced deliveries is never edited in place: the old row is
// deactivated and a fresh one inserted, so sent bodies stay
// attributable to the exact text that went out.
func (e *Engine) SaveTemplate(ctx context.Context, im *domain.InteractiveMessage) error {
	if err := im.Validate(); err != nil {
		return fmt.Errorf("validate template: %w", err)
	}

	if im.ID != "" {
		sent, err := e.repo.TemplateHasDeliveries(ctx, im.ID)
		if err != nil {
			return fmt.Errorf("check template deliveries: %w", err)
		}
		if !sent {
			im.Active = true
			if err := e.repo.UpdateTemplate(ctx, im); err != nil {
				return fmt.Errorf("update template: %w", err)
			}
			return nil
		}
	}

	// New template, or versioning an edited one that has deliveries.
	if err := e.repo.DeactivateType(ctx, im.Type); err != nil {
		return fmt.Errorf("deactivate old templates: %w", err)
	}
	fresh := *im
	fresh.ID = uuid.NewString()
	fresh.Active = true
	fresh.Added = e.now()
	if err := e.repo.InsertTemplate(ctx, &fresh); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	*im = fresh
	return nil
}

func (e *Engine) mailcommandURL(t domain.InteractiveType, action, token string) string {
	return fmt.Sprintf("%s/message/mailcommand/%s/%s/%s/", e.cfg.BaseURL, t, action, token)
}
