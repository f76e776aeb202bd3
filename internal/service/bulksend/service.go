package bulksend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/osteele/liquid"
	"golang.org/x/time/rate"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/pkg/distlock"
	"github.com/felag/mailengine/internal/pkg/logger"
	"github.com/felag/mailengine/internal/service/interactive"
)

// RecipientResolver produces a message's candidate recipient set.
// Satisfied by recipients.Service.
type RecipientResolver interface {
	Resolve(ctx context.Context, msg *domain.Message) ([]domain.Recipient, error)
}

// Ledger is the durable delivery record. Satisfied by ledger.Service.
type Ledger interface {
	AlreadyDelivered(ctx context.Context, messageID string) (map[string]bool, error)
	RecordDelivery(ctx context.Context, messageID string, r domain.Recipient, at time.Time) (bool, error)
	Purge(ctx context.Context, messageID string) error
}

// LinkService tokens recipients and shortens the unsubscribe link.
// Satisfied by tokenlink.Service.
type LinkService interface {
	EnsureToken(ctx context.Context, r domain.Recipient) (string, error)
	Shorten(ctx context.Context, longURL string) (string, error)
}

// TemplateStore reports which interactive templates are active.
// Satisfied by interactive repositories.
type TemplateStore interface {
	ActiveTemplate(ctx context.Context, t domain.InteractiveType) (*domain.InteractiveMessage, error)
}

// MailSender delivers a single email synchronously.
type MailSender interface {
	Send(ctx context.Context, to, subject, body, fromAddress string) error
}

// LockFactory builds the per-message re-entrancy guard.
type LockFactory func(messageID string) distlock.Lock

// Config holds the immutable settings for a sender.
type Config struct {
	// BaseURL is the externally visible root for mailcommand links.
	BaseURL string
	// DefaultFrom is used when a message carries no from address.
	DefaultFrom string
	// SubjectPrefix, when set, is prepended to every subject line in
	// brackets.
	SubjectPrefix string
	// SendsPerSecond caps outbound mail throughput. Zero means no cap.
	SendsPerSecond float64
}

// Service drives one message through Sending to Complete.
type Service struct {
	repo      Repository
	resolver  RecipientResolver
	ledger    Ledger
	links     LinkService
	templates TemplateStore
	sender    MailSender
	lockFor   LockFactory
	limiter   *rate.Limiter
	render    *liquid.Engine
	cfg       Config
	now       func() time.Time
}

// NewService creates a bulk sender.
func NewService(repo Repository, resolver RecipientResolver, ledger Ledger, links LinkService, templates TemplateStore, sender MailSender, lockFor LockFactory, cfg Config) *Service {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1)
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		ledger:    ledger,
		links:     links,
		templates: templates,
		sender:    sender,
		lockFor:   lockFor,
		limiter:   limiter,
		render:    liquid.NewEngine(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// ProcessMessage runs one delivery pass over msg. It returns ErrLocked
// when another run holds the message, nil when the pass finished (the
// message may or may not be complete: per-recipient failures leave it
// in Sending for the next pass), and an error only for process-wide
// failures such as the store being unreachable.
func (s *Service) ProcessMessage(ctx context.Context, msg *domain.Message) error {
	lock := s.lockFor(msg.ID)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire message lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[BulkSender] release lock for message %s: %v", msg.ID, err)
		}
	}()

	// First entry into Sending stamps the run start before resolution,
	// so the resolver's cutoff excludes members added mid-run.
	firstEntry := msg.SendingStarted == nil
	if firstEntry {
		startedAt := s.now()
		msg.SendingStarted = &startedAt
	}

	recipients, err := s.resolver.Resolve(ctx, msg)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	if firstEntry {
		set, err := s.repo.MarkStarted(ctx, msg.ID, *msg.SendingStarted, len(recipients))
		if err != nil {
			return fmt.Errorf("mark sending started: %w", err)
		}
		if set {
			msg.RecipientCount = len(recipients)
		}
	}

	delivered, err := s.ledger.AlreadyDelivered(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load delivery ledger: %w", err)
	}

	var failures int
	for _, r := range recipients {
		if delivered[r.Key()] {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		if err := s.deliverOne(ctx, msg, r); err != nil {
			failures++
			log.Printf("[BulkSender] message %s recipient %s: %v",
				msg.ID, logger.RedactEmail(r.Email()), err)
		}
	}

	if failures > 0 {
		log.Printf("[BulkSender] message %s: %d failures outstanding, staying in sending", msg.ID, failures)
		return nil
	}

	completedAt := s.now()
	if err := s.repo.MarkComplete(ctx, msg.ID, completedAt); err != nil {
		return fmt.Errorf("mark sending complete: %w", err)
	}
	msg.SendingComplete = &completedAt

	// The snapshot counters preserve the statistics; the row-level
	// ledger is only needed while a run can still be resumed.
	if err := s.ledger.Purge(ctx, msg.ID); err != nil {
		return fmt.Errorf("purge delivery ledger: %w", err)
	}
	return nil
}

// deliverOne sends to a single recipient and records the delivery.
// Each step is durable before the next; a crash between send and
// record costs at most one duplicate mail on the next pass.
func (s *Service) deliverOne(ctx context.Context, msg *domain.Message, r domain.Recipient) error {
	token, err := s.links.EnsureToken(ctx, r)
	if err != nil {
		return fmt.Errorf("ensure token: %w", err)
	}

	body, err := s.buildBody(ctx, msg, r, token)
	if err != nil {
		return fmt.Errorf("build body: %w", err)
	}

	from := msg.FromAddress
	if from == "" {
		from = s.cfg.DefaultFrom
	}
	subject := msg.Subject
	if s.cfg.SubjectPrefix != "" {
		subject = "[" + s.cfg.SubjectPrefix + "] " + subject
	}
	if err := s.sender.Send(ctx, r.Email(), subject, body, from); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	created, err := s.ledger.RecordDelivery(ctx, msg.ID, r, s.now())
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	if created {
		if err := s.repo.IncrementComplete(ctx, msg.ID); err != nil {
			return fmt.Errorf("increment complete count: %w", err)
		}
		msg.RecipientCountComplete++
	}
	return nil
}

// buildBody renders the message body for one recipient and appends
// the unsubscribe footer when an active opt-out template exists.
// Members opt out of bulk mail; subscribers leave the mailing list.
func (s *Service) buildBody(ctx context.Context, msg *domain.Message, r domain.Recipient, token string) (string, error) {
	bindings := liquid.Bindings{"email": r.Email()}
	if r.Kind == domain.RecipientMember {
		bindings["name"] = r.Member.Name
	}
	body, err := s.render.ParseAndRenderString(msg.Body, bindings)
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}

	var footerType domain.InteractiveType
	switch r.Kind {
	case domain.RecipientMember:
		footerType = domain.InteractiveRejectEmailMessages
	case domain.RecipientSubscriber:
		footerType = domain.InteractiveMailinglistConfirm
	default:
		return "", fmt.Errorf("unknown recipient kind %q", r.Kind)
	}

	// The footer is only offered when the opt-out link has an active
	// template behind it; without one the link would dead-end.
	if _, err := s.templates.ActiveTemplate(ctx, footerType); err != nil {
		if errors.Is(err, interactive.ErrTemplateMissing) {
			return body, nil
		}
		return "", fmt.Errorf("look up %s template: %w", footerType, err)
	}

	long := fmt.Sprintf("%s/message/mailcommand/%s/reject/%s/", s.cfg.BaseURL, footerType, token)
	short, shortenErr := s.links.Shorten(ctx, long)
	if shortenErr != nil {
		return "", fmt.Errorf("shorten unsubscribe link: %w", shortenErr)
	}
	return body + "\n\n--\nTo stop receiving these emails, visit: " + short + "\n", nil
}
