package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/interactive"
)

// InteractiveRepo implements interactive.Repository against
// PostgreSQL. Every effect method clears the owning record's token in
// the same statement or transaction that applies the state change.
type InteractiveRepo struct{ db *sql.DB }

// NewInteractiveRepo creates a Postgres-backed interactive repository.
func NewInteractiveRepo(db *sql.DB) *InteractiveRepo { return &InteractiveRepo{db: db} }

func (r *InteractiveRepo) ActiveTemplate(ctx context.Context, t domain.InteractiveType) (*domain.InteractiveMessage, error) {
	im := &domain.InteractiveMessage{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, interactive_type, from_address, subject, body, active, added
		FROM interactive_messages
		WHERE interactive_type = $1 AND active = TRUE
		ORDER BY added DESC
		LIMIT 1
	`, t).Scan(&im.ID, &im.Type, &im.FromAddress, &im.Subject, &im.Body, &im.Active, &im.Added)
	if err == sql.ErrNoRows {
		return nil, interactive.ErrTemplateMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get active template: %w", err)
	}
	return im, nil
}

func (r *InteractiveRepo) TemplateHasDeliveries(ctx context.Context, templateID string) (bool, error) {
	var sent bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM interactive_deliveries WHERE interactive_message_id = $1)
	`, templateID).Scan(&sent)
	if err != nil {
		return false, fmt.Errorf("check template deliveries: %w", err)
	}
	return sent, nil
}

func (r *InteractiveRepo) DeactivateType(ctx context.Context, t domain.InteractiveType) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE interactive_messages SET active = FALSE WHERE interactive_type = $1
	`, t)
	if err != nil {
		return fmt.Errorf("deactivate templates: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) InsertTemplate(ctx context.Context, im *domain.InteractiveMessage) error {
	if im.ID == "" {
		im.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interactive_messages
			(id, interactive_type, from_address, subject, body, active, added)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, im.ID, im.Type, im.FromAddress, im.Subject, im.Body, im.Active, im.Added)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) UpdateTemplate(ctx context.Context, im *domain.InteractiveMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE interactive_messages
		SET from_address = $2, subject = $3, body = $4, active = $5
		WHERE id = $1
	`, im.ID, im.FromAddress, im.Subject, im.Body, im.Active)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) RecipientByToken(ctx context.Context, token string) (domain.Recipient, error) {
	m := &domain.Member{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, ssn, name, email, email_verified, consent,
		       COALESCE(municipality_code,''), COALESCE(postal_code,''),
		       token, token_issued_at, added
		FROM members
		WHERE token = $1
	`, token).Scan(
		&m.ID, &m.SSN, &m.Name, &m.Email, &m.EmailVerified, &m.Consent,
		&m.MunicipalityCode, &m.PostalCode, &m.Token, &m.TokenIssuedAt, &m.Added,
	)
	if err == nil {
		return domain.MemberRecipient(m), nil
	}
	if err != sql.ErrNoRows {
		return domain.Recipient{}, fmt.Errorf("member by token: %w", err)
	}

	s := &domain.Subscriber{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, email, verified, verified_at, token, token_issued_at, created
		FROM subscribers
		WHERE token = $1
	`, token).Scan(&s.ID, &s.Email, &s.Verified, &s.VerifiedAt, &s.Token, &s.TokenIssuedAt, &s.Created)
	if err == sql.ErrNoRows {
		return domain.Recipient{}, interactive.ErrTokenNotFound
	}
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("subscriber by token: %w", err)
	}
	return domain.SubscriberRecipient(s), nil
}

func (r *InteractiveRepo) VerifyMember(ctx context.Context, memberID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE members
		SET email_verified = TRUE, token = NULL, token_issued_at = NULL
		WHERE id = $1
	`, memberID)
	if err != nil {
		return fmt.Errorf("verify member: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) DeleteMember(ctx context.Context, memberID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete member: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM member_group_members WHERE member_id = $1
	`, memberID); err != nil {
		return fmt.Errorf("delete member group links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM members WHERE id = $1
	`, memberID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete member: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) RevokeMemberConsent(ctx context.Context, memberID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE members
		SET consent = $2, consent_reason = $3, token = NULL, token_issued_at = NULL
		WHERE id = $1
	`, memberID, domain.ConsentRefused, reason)
	if err != nil {
		return fmt.Errorf("revoke member consent: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) VerifySubscriber(ctx context.Context, subscriberID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET verified = TRUE, verified_at = $2, token = NULL, token_issued_at = NULL
		WHERE id = $1
	`, subscriberID, at)
	if err != nil {
		return fmt.Errorf("verify subscriber: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) DeleteSubscriber(ctx context.Context, subscriberID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM subscribers WHERE id = $1
	`, subscriberID)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	return nil
}

func (r *InteractiveRepo) RecordDelivery(ctx context.Context, d *domain.InteractiveDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interactive_deliveries (id, interactive_message_id, email, delivered_at)
		VALUES ($1, $2, $3, $4)
	`, d.ID, d.InteractiveMessageID, d.Email, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("record interactive delivery: %w", err)
	}
	return nil
}
