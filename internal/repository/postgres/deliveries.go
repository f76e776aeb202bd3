package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felag/mailengine/internal/domain"
)

// DeliveryRepo implements ledger.Repository against PostgreSQL. The
// append-once invariant is held by the unique constraint over
// (message_id, recipient_kind, recipient_id).
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

func (r *DeliveryRepo) Deliveries(ctx context.Context, messageID string) ([]domain.MessageDelivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, recipient_kind, recipient_id, email, delivered_at
		FROM message_deliveries
		WHERE message_id = $1
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageDelivery
	for rows.Next() {
		var d domain.MessageDelivery
		if err := rows.Scan(&d.MessageID, &d.RecipientKind, &d.RecipientID, &d.Email, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func (r *DeliveryRepo) Insert(ctx context.Context, d domain.MessageDelivery) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO message_deliveries (message_id, recipient_kind, recipient_id, email, delivered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id, recipient_kind, recipient_id) DO NOTHING
	`, d.MessageID, d.RecipientKind, d.RecipientID, d.Email, d.DeliveredAt)
	if err != nil {
		return false, fmt.Errorf("insert delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert delivery result: %w", err)
	}
	return n > 0, nil
}

func (r *DeliveryRepo) Purge(ctx context.Context, messageID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM message_deliveries WHERE message_id = $1
	`, messageID)
	if err != nil {
		return 0, fmt.Errorf("purge deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge deliveries result: %w", err)
	}
	return n, nil
}
