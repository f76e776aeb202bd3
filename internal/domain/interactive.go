package domain

import (
	"fmt"
	"regexp"
	"time"
)

// InteractiveType enumerates the one-shot transactional mail templates.
type InteractiveType string

const (
	InteractiveRegistrationReceived  InteractiveType = "registration_received"
	InteractiveRegistrationConfirmed InteractiveType = "registration_confirmed"
	InteractiveRejectEmailMessages   InteractiveType = "reject_email_messages"
	InteractiveMailinglistConfirm    InteractiveType = "mailinglist_confirmation"
	InteractiveRemindMembership      InteractiveType = "remind_membership"
)

// InteractiveTypes lists every known template type.
func InteractiveTypes() []InteractiveType {
	return []InteractiveType{
		InteractiveRegistrationReceived,
		InteractiveRegistrationConfirmed,
		InteractiveRejectEmailMessages,
		InteractiveMailinglistConfirm,
		InteractiveRemindMembership,
	}
}

// Valid reports whether t is a known template type.
func (t InteractiveType) Valid() bool {
	switch t {
	case InteractiveRegistrationReceived, InteractiveRegistrationConfirmed,
		InteractiveRejectEmailMessages, InteractiveMailinglistConfirm,
		InteractiveRemindMembership:
		return true
	}
	return false
}

// RequiredLinks returns the placeholder names the template body must
// contain for this type, e.g. {{confirm}}.
func (t InteractiveType) RequiredLinks() []string {
	switch t {
	case InteractiveRegistrationReceived:
		return []string{"confirm", "reject"}
	case InteractiveMailinglistConfirm:
		return []string{"confirm", "reject"}
	case InteractiveRejectEmailMessages:
		return []string{"reject"}
	}
	return nil
}

// InteractiveMessage is a template for a one-shot transactional mail
// whose body embeds action links. At most one template per type is
// active at a time.
type InteractiveMessage struct {
	ID          string          `json:"id" db:"id"`
	Type        InteractiveType `json:"interactive_type" db:"interactive_type"`
	FromAddress string          `json:"from_address" db:"from_address"`
	Subject     string          `json:"subject" db:"subject"`
	Body        string          `json:"body" db:"body"`
	Active      bool            `json:"active" db:"active"`
	Added       time.Time       `json:"added" db:"added"`
}

// InteractiveDelivery records one sent interactive mail against the
// exact template row that produced it. Templates with deliveries are
// never edited in place; a new row is inserted instead so sent bodies
// stay attributable.
type InteractiveDelivery struct {
	ID                   string    `json:"id" db:"id"`
	InteractiveMessageID string    `json:"interactive_message_id" db:"interactive_message_id"`
	Email                string    `json:"email" db:"email"`
	DeliveredAt          time.Time `json:"delivered_at" db:"delivered_at"`
}

// placeholderPattern matches {{name}} with optional inner spaces, the
// form the liquid renderer accepts.
func placeholderPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
}

// Validate checks that the body contains every link placeholder the
// template type requires. Violations are configuration errors and must
// be rejected at save time, not at send time.
func (im *InteractiveMessage) Validate() error {
	if !im.Type.Valid() {
		return fmt.Errorf("unknown interactive type %q", im.Type)
	}
	var missing []string
	for _, link := range im.Type.RequiredLinks() {
		if !placeholderPattern(link).MatchString(im.Body) {
			missing = append(missing, "{{"+link+"}}")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template %s is missing link placeholders: %v", im.Type, missing)
	}
	return nil
}
