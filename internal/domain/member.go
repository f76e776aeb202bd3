package domain

import "time"

// Consent is the tri-state email consent of a member.
//
// The registry historically carried two flags (a legacy opt-out boolean
// and a newer nullable opt-in), which were collapsed into this single
// value during migration: opted-out became refused, explicit opt-in
// became granted, everything else became unknown.
type Consent string

const (
	ConsentUnknown Consent = "unknown"
	ConsentGranted Consent = "granted"
	ConsentRefused Consent = "refused"
)

// MayEmail reports whether bulk mail may be sent under this consent
// state. Unknown consent is included; only an explicit refusal excludes.
func (c Consent) MayEmail() bool {
	return c != ConsentRefused
}

// Member is a registered individual in the membership registry. Owned by
// the membership subsystem; the messaging engine reads it and only
// writes tokens and the consent/verification side effects of mail links.
type Member struct {
	ID            string  `json:"id" db:"id"`
	SSN           string  `json:"ssn" db:"ssn"`
	Name          string  `json:"name" db:"name"`
	Email         string  `json:"email" db:"email"`
	EmailVerified bool    `json:"email_verified" db:"email_verified"`
	Consent       Consent `json:"consent" db:"consent"`

	// Auxiliary matching inputs for location-scoped groups.
	MunicipalityCode string `json:"municipality_code" db:"municipality_code"`
	PostalCode       string `json:"postal_code" db:"postal_code"`

	Token         *string    `json:"-" db:"token"`
	TokenIssuedAt *time.Time `json:"-" db:"token_issued_at"`

	Added time.Time `json:"added" db:"added"`
}

// LocationCodes returns the member's jurisdiction codes in the
// prefixed form used by LocationCode records.
func (m *Member) LocationCodes() []string {
	var codes []string
	if m.MunicipalityCode != "" {
		codes = append(codes, "mun:"+m.MunicipalityCode)
	}
	if m.PostalCode != "" {
		codes = append(codes, "zip:"+m.PostalCode)
	}
	return codes
}

// Subscriber is a mailing-list-only contact. A Subscriber is deleted
// when the same email becomes a Member; the two are mutually exclusive.
type Subscriber struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	Verified      bool       `json:"verified" db:"verified"`
	VerifiedAt    *time.Time `json:"verified_at" db:"verified_at"`
	Token         *string    `json:"-" db:"token"`
	TokenIssuedAt *time.Time `json:"-" db:"token_issued_at"`
	Created       time.Time  `json:"created" db:"created"`
}
