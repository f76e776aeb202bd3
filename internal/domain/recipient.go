package domain

// RecipientKind tags which side of the Recipient union is set.
type RecipientKind string

const (
	RecipientMember     RecipientKind = "member"
	RecipientSubscriber RecipientKind = "subscriber"
)

// Recipient is a tagged union over Member and Subscriber — the two
// entities eligible to receive mail. Exactly one side is non-nil.
// Consumption sites must switch on Kind exhaustively.
type Recipient struct {
	Kind       RecipientKind
	Member     *Member
	Subscriber *Subscriber
}

// MemberRecipient wraps a Member as a Recipient.
func MemberRecipient(m *Member) Recipient {
	return Recipient{Kind: RecipientMember, Member: m}
}

// SubscriberRecipient wraps a Subscriber as a Recipient.
func SubscriberRecipient(s *Subscriber) Recipient {
	return Recipient{Kind: RecipientSubscriber, Subscriber: s}
}

// ID returns the identifier of whichever entity is set.
func (r Recipient) ID() string {
	switch r.Kind {
	case RecipientMember:
		return r.Member.ID
	case RecipientSubscriber:
		return r.Subscriber.ID
	}
	return ""
}

// Email returns the delivery address of whichever entity is set.
func (r Recipient) Email() string {
	switch r.Kind {
	case RecipientMember:
		return r.Member.Email
	case RecipientSubscriber:
		return r.Subscriber.Email
	}
	return ""
}

// Key returns the ledger key for this recipient, unique across both
// entity namespaces.
func (r Recipient) Key() string {
	return string(r.Kind) + ":" + r.ID()
}

// Token returns the recipient's current ephemeral token, or nil.
func (r Recipient) Token() *string {
	switch r.Kind {
	case RecipientMember:
		return r.Member.Token
	case RecipientSubscriber:
		return r.Subscriber.Token
	}
	return nil
}
