package tokenlink

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felag/mailengine/internal/domain"
)

const (
	// tokenBytes yields 40 hex characters, fitting the token columns.
	tokenBytes = 20
	// maxAttempts bounds regenerate-and-retry on collisions.
	maxAttempts = 10
)

// Config holds the immutable settings for the link service.
type Config struct {
	// BaseURL is the externally visible root used for short links.
	BaseURL string
	// CodeLength is the short-code length in characters.
	CodeLength int
	// Expiry is how long a short code stays resolvable.
	Expiry time.Duration
	// TokenTTL is how long an issued recipient token stays reusable.
	TokenTTL time.Duration
}

// Service issues recipient tokens and shortens URLs.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a token/link service.
func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// IssueToken generates a fresh unpredictable token for the recipient,
// unique across members and subscribers, and persists it before
// returning. Collisions regenerate up to maxAttempts times.
func (s *Service) IssueToken(ctx context.Context, r domain.Recipient) (string, error) {
	issuedAt := s.now()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token := randomToken()

		inUse, err := s.repo.TokenInUse(ctx, token)
		if err != nil {
			return "", fmt.Errorf("token collision check: %w", err)
		}
		if inUse {
			continue
		}

		switch r.Kind {
		case domain.RecipientMember:
			err = s.repo.SetMemberToken(ctx, r.Member.ID, token, issuedAt)
		case domain.RecipientSubscriber:
			err = s.repo.SetSubscriberToken(ctx, r.Subscriber.ID, token, issuedAt)
		default:
			return "", fmt.Errorf("issue token: unknown recipient kind %q", r.Kind)
		}
		if errors.Is(err, ErrDuplicate) {
			// Lost a race between the check and the insert.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("persist token: %w", err)
		}

		setToken(r, token, issuedAt)
		return token, nil
	}
	return "", ErrExhausted
}

// EnsureToken returns the recipient's current token if it is still
// within its TTL, otherwise issues a new one.
func (s *Service) EnsureToken(ctx context.Context, r domain.Recipient) (string, error) {
	token, issuedAt := currentToken(r)
	if token != "" && issuedAt != nil && s.now().Sub(*issuedAt) < s.cfg.TokenTTL {
		return token, nil
	}
	return s.IssueToken(ctx, r)
}

// Shorten maps a long URL to a short /r/{code} link. The mapping is
// only persisted when the short form actually is shorter; otherwise
// the original URL comes back unchanged and nothing is stored.
func (s *Service) Shorten(ctx context.Context, longURL string) (string, error) {
	salt := fmt.Sprintf("%d|%s", s.now().UnixNano(), longURL)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := shortCode(fmt.Sprintf("%s|%d", salt, attempt), s.cfg.CodeLength)
		short := s.cfg.BaseURL + "/r/" + code
		if len(short) >= len(longURL) {
			return longURL, nil
		}

		err := s.repo.InsertShortURL(ctx, &domain.ShortURL{
			ID:    uuid.New().String(),
			Code:  code,
			URL:   longURL,
			Added: s.now(),
		})
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("persist short url: %w", err)
		}
		return short, nil
	}
	return "", ErrExhausted
}

// Resolve returns the long URL for a code. Codes older than the expiry
// window are treated as not found even if the row still exists, and
// trigger a lazy purge of everything expired.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	cutoff := s.now().Add(-s.cfg.Expiry)

	su, err := s.repo.ShortURLByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		s.purgeExpired(ctx, cutoff)
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve code %s: %w", code, err)
	}
	if su.Added.Before(cutoff) {
		s.purgeExpired(ctx, cutoff)
		return "", ErrNotFound
	}
	return su.URL, nil
}

func (s *Service) purgeExpired(ctx context.Context, cutoff time.Time) {
	// Cleanup is opportunistic; a failure here never affects the caller.
	_, _ = s.repo.PurgeExpiredShortURLs(ctx, cutoff)
}

func randomToken() string {
	b := make([]byte, tokenBytes)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// shortCode derives a code from a hash of the salted input, truncated
// to the configured length.
func shortCode(input string, length int) string {
	sum := sha256.Sum256([]byte(input))
	code := hex.EncodeToString(sum[:])
	if length > 0 && length < len(code) {
		return code[:length]
	}
	return code
}

func currentToken(r domain.Recipient) (string, *time.Time) {
	switch r.Kind {
	case domain.RecipientMember:
		if r.Member.Token != nil {
			return *r.Member.Token, r.Member.TokenIssuedAt
		}
	case domain.RecipientSubscriber:
		if r.Subscriber.Token != nil {
			return *r.Subscriber.Token, r.Subscriber.TokenIssuedAt
		}
	}
	return "", nil
}

func setToken(r domain.Recipient, token string, issuedAt time.Time) {
	switch r.Kind {
	case domain.RecipientMember:
		r.Member.Token = &token
		r.Member.TokenIssuedAt = &issuedAt
	case domain.RecipientSubscriber:
		r.Subscriber.Token = &token
		r.Subscriber.TokenIssuedAt = &issuedAt
	}
}
