package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/tokenlink"
)

// TokenRepo implements tokenlink.Repository against PostgreSQL.
// Token uniqueness spans the members and subscribers tables; both
// carry a unique index on token and the repo checks across both.
type TokenRepo struct{ db *sql.DB }

// NewTokenRepo creates a Postgres-backed token/short-URL repository.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) TokenInUse(ctx context.Context, token string) (bool, error) {
	var inUse bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM members WHERE token = $1)
		    OR EXISTS (SELECT 1 FROM subscribers WHERE token = $1)
	`, token).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check token in use: %w", err)
	}
	return inUse, nil
}

func (r *TokenRepo) SetMemberToken(ctx context.Context, memberID, token string, issuedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE members SET token = $2, token_issued_at = $3 WHERE id = $1
	`, memberID, token, issuedAt)
	if isUniqueViolation(err) {
		return tokenlink.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("set member token: %w", err)
	}
	return nil
}

func (r *TokenRepo) SetSubscriberToken(ctx context.Context, subscriberID, token string, issuedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET token = $2, token_issued_at = $3 WHERE id = $1
	`, subscriberID, token, issuedAt)
	if isUniqueViolation(err) {
		return tokenlink.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("set subscriber token: %w", err)
	}
	return nil
}

func (r *TokenRepo) ShortURLByCode(ctx context.Context, code string) (*domain.ShortURL, error) {
	su := &domain.ShortURL{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, url, added FROM short_urls WHERE code = $1
	`, code).Scan(&su.ID, &su.Code, &su.URL, &su.Added)
	if err == sql.ErrNoRows {
		return nil, tokenlink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get short url: %w", err)
	}
	return su, nil
}

func (r *TokenRepo) InsertShortURL(ctx context.Context, su *domain.ShortURL) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO short_urls (id, code, url, added) VALUES ($1, $2, $3, $4)
	`, su.ID, su.Code, su.URL, su.Added)
	if isUniqueViolation(err) {
		return tokenlink.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (r *TokenRepo) PurgeExpiredShortURLs(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM short_urls WHERE added < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("purge short urls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge short urls result: %w", err)
	}
	return n, nil
}
