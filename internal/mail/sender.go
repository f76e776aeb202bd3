// Package mail wraps the outbound mail primitive. The engine treats
// any non-nil error as a retryable delivery failure; retry policy lives
// with the caller, not here.
package mail

import "context"

// Sender delivers a single email synchronously.
type Sender interface {
	Send(ctx context.Context, to, subject, body, fromAddress string) error
}
