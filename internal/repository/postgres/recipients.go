package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felag/mailengine/internal/domain"
)

// RecipientRepo implements recipients.Repository against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

func (r *RecipientRepo) AllMembers(ctx context.Context) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ssn, name, email, email_verified, consent,
		       COALESCE(municipality_code,''), COALESCE(postal_code,''),
		       token, token_issued_at, added
		FROM members
	`)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *RecipientRepo) MemberEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT LOWER(email) FROM members
	`)
	if err != nil {
		return nil, fmt.Errorf("load member emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan member email: %w", err)
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member emails: %w", err)
	}
	return out, nil
}

func (r *RecipientRepo) VerifiedSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, verified, verified_at, token, token_issued_at, created
		FROM subscribers
		WHERE verified = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("load verified subscribers: %w", err)
	}
	defer rows.Close()
	return scanSubscribers(rows)
}

func scanSubscribers(rows *sql.Rows) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.Email, &s.Verified, &s.VerifiedAt,
			&s.Token, &s.TokenIssuedAt, &s.Created,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return out, nil
}
