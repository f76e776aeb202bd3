package domain

import (
	"regexp"
	"strings"
	"time"
)

// CombinationMethod describes how a group's auxiliary location matches
// combine with its explicit membership.
type CombinationMethod string

const (
	CombinationUnion        CombinationMethod = "union"
	CombinationIntersection CombinationMethod = "intersection"
)

// MemberGroup is a named group of members. Groups may automatically
// include other groups via AutoSubgroupIDs (a directed graph that can
// contain cycles) and may carry auxiliary location criteria that match
// members by jurisdiction code.
type MemberGroup struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Techname string `json:"techname" db:"techname"`
	Email    string `json:"email" db:"email"`

	AutoSubgroupIDs []string          `json:"auto_subgroup_ids"`
	LocationCodes   []string          `json:"location_codes"`
	Combination     CombinationMethod `json:"combination_method" db:"combination_method"`

	Added time.Time `json:"added" db:"added"`
}

// LocationCode maps a jurisdiction code to a display name, with
// optional automatic expansion into further codes (e.g. a municipality
// expanding into its postal codes).
type LocationCode struct {
	Code      string   `json:"code" db:"code"`
	Name      string   `json:"name" db:"name"`
	AutoCodes []string `json:"auto_codes"`
}

var technameStrip = regexp.MustCompile(`[^-a-z0-9+]`)

var technameFold = strings.NewReplacer(
	" ", "-",
	"á", "a",
	"ð", "d",
	"é", "e",
	"í", "i",
	"ó", "o",
	"ú", "u",
	"ý", "y",
	"þ", "th",
	"æ", "ae",
	"ö", "o",
)

// Techify derives a normalized slug from a display name: lowercased,
// Icelandic diacritics folded, spaces to hyphens, everything else
// outside [-a-z0-9+] dropped.
func Techify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = technameFold.Replace(s)
	return technameStrip.ReplaceAllString(s, "")
}
