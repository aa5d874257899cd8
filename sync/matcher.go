// ABOUTME: Patron matching and update detection
// ABOUTME: Classifies a canonical contact as create, update, no change or skip against FSI patrons
package sync

import (
	"strings"

	"github.com/harperreed/patronsync/models"
)

// Action is the outcome of classifying one contact.
type Action int

const (
	ActionSkip Action = iota
	ActionCreate
	ActionUpdate
	ActionNoChange
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionNoChange:
		return "no-change"
	case ActionSkip:
		return "skip"
	}
	return "unknown"
}

// SkipReason explains why a contact was left out of the sync.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNoEmail
	SkipNonTargetDomain
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoEmail:
		return "no email"
	case SkipNonTargetDomain:
		return "non-target domain"
	}
	return ""
}

// Decision is the classification of one contact. Patron is set when a patron
// username matched, whether or not an update is needed.
type Decision struct {
	Action  Action
	Reason  SkipReason
	Contact models.ContactRecord
	Patron  *models.PatronRecord
	// Field names the first differing field for updates.
	Field string
}

// Classify decides what to do with contact given the current patron list.
// The email checks run once up front; the patron scan stops at the first
// username match.
func Classify(contact models.ContactRecord, patrons []models.PatronRecord, domain string) Decision {
	if contact.Email == nil {
		return Decision{Action: ActionSkip, Reason: SkipNoEmail, Contact: contact}
	}
	if !strings.Contains(*contact.Email, domain) {
		return Decision{Action: ActionSkip, Reason: SkipNonTargetDomain, Contact: contact}
	}

	email := normalizeEmail(*contact.Email)
	for i := range patrons {
		if normalizeEmail(patrons[i].Username) != email {
			continue
		}
		patron := &patrons[i]
		if field := firstDifference(contact, patron); field != "" {
			return Decision{Action: ActionUpdate, Contact: contact, Patron: patron, Field: field}
		}
		return Decision{Action: ActionNoChange, Contact: contact, Patron: patron}
	}

	return Decision{Action: ActionCreate, Contact: contact}
}

// firstDifference returns the name of the first field that differs between
// the contact and its patron, or "". Comparisons are exact and case-sensitive.
func firstDifference(contact models.ContactRecord, patron *models.PatronRecord) string {
	if contact.FirstName != patron.Firstname {
		return "firstname"
	}
	if contact.Surname != patron.Surname {
		return "surname"
	}
	if contact.Kind == models.KindStudent &&
		TrimClassgrade(contact.FormShortName) != TrimPatronClassgrade(patron.Classgrade) {
		return "classgrade"
	}
	return ""
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(email)
}
