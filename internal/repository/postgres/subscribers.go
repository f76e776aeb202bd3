package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felag/mailengine/internal/domain"
)

var (
	// ErrEmailIsMember means the email already belongs to a member.
	// Members and subscribers are mutually exclusive.
	ErrEmailIsMember = errors.New("postgres: email belongs to a member")

	// ErrSubscriberExists means the email is already subscribed.
	ErrSubscriberExists = errors.New("postgres: subscriber already exists")
)

// SubscriberRepo manages mailing-list subscriber rows.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

// Create inserts an unverified subscriber for the email. The email
// must not belong to a member, and at most one subscriber row exists
// per email.
func (r *SubscriberRepo) Create(ctx context.Context, email string) (*domain.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var isMember bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM members WHERE LOWER(email) = $1)
	`, email).Scan(&isMember)
	if err != nil {
		return nil, fmt.Errorf("check member email: %w", err)
	}
	if isMember {
		return nil, ErrEmailIsMember
	}

	s := &domain.Subscriber{
		ID:      uuid.New().String(),
		Email:   email,
		Created: time.Now(),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, email, verified, created)
		VALUES ($1, $2, FALSE, $3)
	`, s.ID, s.Email, s.Created)
	if isUniqueViolation(err) {
		return nil, ErrSubscriberExists
	}
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return s, nil
}

// DeleteByMemberEmail removes any subscriber sharing an email with the
// given member. Called when an email becomes a member, to hold the
// exclusivity invariant.
func (r *SubscriberRepo) DeleteByMemberEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM subscribers WHERE LOWER(email) = LOWER($1)
	`, email)
	if err != nil {
		return fmt.Errorf("delete subscriber by member email: %w", err)
	}
	return nil
}

// PurgeUnverified removes subscribers that never confirmed within the
// retention window.
func (r *SubscriberRepo) PurgeUnverified(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM subscribers WHERE verified = FALSE AND created < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("purge unverified subscribers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge unverified subscribers result: %w", err)
	}
	return n, nil
}
