package domain

import "time"

// Message is a bulk announcement. Targeting is either everyone
// (SendToAll) or a set of member groups, optionally widened with
// transitive subgroups and the verified mailing list.
//
// Lifecycle: Draft → ReadyToSend → Sending → Complete, expressed through
// the ReadyToSend flag and the two nullable timestamps. Sending is
// re-entrant: a crashed run resumes from the delivery ledger rather
// than starting over.
type Message struct {
	ID          string `json:"id" db:"id"`
	FromAddress string `json:"from_address" db:"from_address"`
	Subject     string `json:"subject" db:"subject"`
	Body        string `json:"body" db:"body"`

	SendToAll          bool     `json:"send_to_all" db:"send_to_all"`
	MemberGroupIDs     []string `json:"member_group_ids"`
	IncludeSubgroups   bool     `json:"include_subgroups" db:"include_subgroups"`
	IncludeMailingList bool     `json:"include_mailing_list" db:"include_mailing_list"`

	ReadyToSend     bool       `json:"ready_to_send" db:"ready_to_send"`
	SendingStarted  *time.Time `json:"sending_started" db:"sending_started"`
	SendingComplete *time.Time `json:"sending_complete" db:"sending_complete"`

	// Snapshots taken at dispatch time, never recomputed afterwards.
	// Group membership changes after a send must not retroactively
	// alter reported statistics.
	RecipientCount         int `json:"recipient_count" db:"recipient_count"`
	RecipientCountComplete int `json:"recipient_count_complete" db:"recipient_count_complete"`

	Added time.Time `json:"added" db:"added"`
}

// MessageDelivery is the durable record of one (message, recipient)
// delivery. Its presence is the sole marker for "delivered"; rows are
// append-only per message and purged only after the message completes.
type MessageDelivery struct {
	MessageID     string        `json:"message_id" db:"message_id"`
	RecipientKind RecipientKind `json:"recipient_kind" db:"recipient_kind"`
	RecipientID   string        `json:"recipient_id" db:"recipient_id"`
	Email         string        `json:"email" db:"email"`
	DeliveredAt   time.Time     `json:"delivered_at" db:"delivered_at"`
}

// ShortURL maps a generated short code to a long URL. Rows are only
// created when the short form actually is shorter, and become
// unresolvable once older than the configured expiry window.
type ShortURL struct {
	ID    string    `json:"id" db:"id"`
	Code  string    `json:"code" db:"code"`
	URL   string    `json:"url" db:"url"`
	Added time.Time `json:"added" db:"added"`
}
