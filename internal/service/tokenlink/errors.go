package tokenlink

import "errors"

// Sentinel errors for the token and short-URL layer.
var (
	// ErrNotFound marks an unknown or expired short code.
	ErrNotFound = errors.New("short url not found")
	// ErrDuplicate is returned by repositories when an insert hits the
	// token or code uniqueness constraint; the service regenerates and
	// retries.
	ErrDuplicate = errors.New("duplicate token or code")
	// ErrExhausted means generation kept colliding and gave up.
	ErrExhausted = errors.New("token generation retries exhausted")
)
