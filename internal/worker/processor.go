// Package worker drives the periodic delivery pass. One invocation
// scans every message flagged ready and not yet complete, and runs the
// bulk sender over each. Per-message failures are logged and left for
// the next pass; only a failure to scan aborts the run.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/felag/mailengine/internal/domain"
	"github.com/felag/mailengine/internal/service/bulksend"
)

// MessageSource lists the messages due for processing.
type MessageSource interface {
	// ReadyMessages returns messages with readyToSend set and
	// sendingComplete still null.
	ReadyMessages(ctx context.Context) ([]*domain.Message, error)
}

// Sender runs one delivery pass over a message. Satisfied by
// bulksend.Service.
type Sender interface {
	ProcessMessage(ctx context.Context, msg *domain.Message) error
}

// SubscriberJanitor removes stale unverified subscribers. Satisfied by
// postgres.SubscriberRepo.
type SubscriberJanitor interface {
	PurgeUnverified(ctx context.Context, before time.Time) (int64, error)
}

// Processor is the scheduler entrypoint, intended to run from cron.
type Processor struct {
	source    MessageSource
	sender    Sender
	janitor   SubscriberJanitor
	retention time.Duration
}

// NewProcessor creates a processor. A nil janitor disables the
// subscriber cleanup step.
func NewProcessor(source MessageSource, sender Sender, janitor SubscriberJanitor, retention time.Duration) *Processor {
	return &Processor{source: source, sender: sender, janitor: janitor, retention: retention}
}

// RunOnce performs a single synchronous pass over the ready messages,
// then purges subscribers that never confirmed within the retention
// window. The returned error is non-nil only for process-wide
// failures; a message that fails or is locked never affects its
// siblings, and a failed cleanup only logs.
func (p *Processor) RunOnce(ctx context.Context) error {
	defer p.cleanExpired(ctx)

	messages, err := p.source.ReadyMessages(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		log.Printf("[Processor] No messages ready")
		return nil
	}
	log.Printf("[Processor] Processing %d ready messages", len(messages))

	var completed, pending, skipped int
	for _, msg := range messages {
		err := p.sender.ProcessMessage(ctx, msg)
		switch {
		case errors.Is(err, bulksend.ErrLocked):
			skipped++
			log.Printf("[Processor] Message %s locked by another run, skipping", msg.ID)
		case err != nil:
			pending++
			log.Printf("[Processor] Message %s failed: %v", msg.ID, err)
		case msg.SendingComplete != nil:
			completed++
			log.Printf("[Processor] Message %s complete (%d/%d recipients)",
				msg.ID, msg.RecipientCountComplete, msg.RecipientCount)
		default:
			pending++
			log.Printf("[Processor] Message %s still has pending recipients", msg.ID)
		}
	}

	log.Printf("[Processor] Pass done. Completed: %d, Pending: %d, Skipped: %d",
		completed, pending, skipped)
	return nil
}

// cleanExpired drops unverified subscribers older than the retention
// window.
func (p *Processor) cleanExpired(ctx context.Context) {
	if p.janitor == nil || p.retention <= 0 {
		return
	}
	n, err := p.janitor.PurgeUnverified(ctx, time.Now().Add(-p.retention))
	if err != nil {
		log.Printf("[Processor] Subscriber cleanup failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Processor] Purged %d unverified subscribers", n)
	}
}
