package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felag/mailengine/internal/domain"
)

// ErrMessageNotFound is returned when a message id has no row.
var ErrMessageNotFound = errors.New("postgres: message not found")

// MessageRepo holds message rows and their lifecycle transitions. It
// implements bulksend.Repository and worker.MessageSource.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `
	id, from_address, subject, body, send_to_all, include_subgroups,
	include_mailing_list, ready_to_send, sending_started, sending_complete,
	recipient_count, recipient_count_complete, added`

func (r *MessageRepo) Message(ctx context.Context, id string) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.FromAddress, &m.Subject, &m.Body, &m.SendToAll, &m.IncludeSubgroups,
		&m.IncludeMailingList, &m.ReadyToSend, &m.SendingStarted, &m.SendingComplete,
		&m.RecipientCount, &m.RecipientCountComplete, &m.Added,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := r.loadGroups(ctx, []*domain.Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadyMessages returns messages flagged ready and not yet complete,
// oldest first. The processor's scan query.
func (r *MessageRepo) ReadyMessages(ctx context.Context) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE ready_to_send = TRUE AND sending_complete IS NULL
		ORDER BY added
	`)
	if err != nil {
		return nil, fmt.Errorf("load ready messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID, &m.FromAddress, &m.Subject, &m.Body, &m.SendToAll, &m.IncludeSubgroups,
			&m.IncludeMailingList, &m.ReadyToSend, &m.SendingStarted, &m.SendingComplete,
			&m.RecipientCount, &m.RecipientCountComplete, &m.Added,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	if err := r.loadGroups(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MessageRepo) loadGroups(ctx context.Context, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Message, len(messages))
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, group_id
		FROM message_groups
		WHERE message_id = ANY($1)
		ORDER BY group_id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load message groups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var messageID, groupID string
		if err := rows.Scan(&messageID, &groupID); err != nil {
			return fmt.Errorf("scan message group row: %w", err)
		}
		if m, ok := byID[messageID]; ok {
			m.MemberGroupIDs = append(m.MemberGroupIDs, groupID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate message groups: %w", err)
	}
	return nil
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Added.IsZero() {
		m.Added = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create message: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages
			(id, from_address, subject, body, send_to_all, include_subgroups,
			 include_mailing_list, ready_to_send, recipient_count,
			 recipient_count_complete, added)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, $9)
	`, m.ID, m.FromAddress, m.Subject, m.Body, m.SendToAll, m.IncludeSubgroups,
		m.IncludeMailingList, m.ReadyToSend, m.Added)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	for _, groupID := range m.MemberGroupIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_groups (message_id, group_id) VALUES ($1, $2)
		`, m.ID, groupID); err != nil {
			return fmt.Errorf("create message group link: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create message: %w", err)
	}
	return nil
}

func (r *MessageRepo) MarkStarted(ctx context.Context, messageID string, at time.Time, recipientCount int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET sending_started = $2, recipient_count = $3
		WHERE id = $1 AND sending_started IS NULL
	`, messageID, at, recipientCount)
	if err != nil {
		return false, fmt.Errorf("mark message started: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark message started result: %w", err)
	}
	return n > 0, nil
}

func (r *MessageRepo) IncrementComplete(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET recipient_count_complete = recipient_count_complete + 1
		WHERE id = $1
	`, messageID)
	if err != nil {
		return fmt.Errorf("increment complete count: %w", err)
	}
	return nil
}

func (r *MessageRepo) MarkComplete(ctx context.Context, messageID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET sending_complete = $2
		WHERE id = $1
	`, messageID, at)
	if err != nil {
		return fmt.Errorf("mark message complete: %w", err)
	}
	return nil
}
