// Package match resolves an affected identity to at most one ticketing-system
// contact via progressive filter narrowing. It is a best-effort fuzzy linkage:
// returning no match is acceptable and expected, false positives are what the
// guarded narrowing minimizes.
package match

import (
	"sort"
	"strings"
	"time"

	"idpmon/pkg/models"
)

// Predicate reports whether a contact passes a narrowing filter.
type Predicate func(models.Contact) bool

// Tokens splits a display name into its first and last whitespace-delimited
// parts. A single-token name yields the same token for both.
func Tokens(displayName string) (first, last string) {
	parts := strings.Fields(displayName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], parts[len(parts)-1]
}

// Narrow folds the predicates over the candidate list in order. A predicate
// is only applied while more than one candidate remains, and is skipped when
// it would reduce the set to empty. The returned flag reports whether any
// predicate was applied.
func Narrow(candidates []models.Contact, preds []Predicate) ([]models.Contact, bool) {
	applied := false
	for _, pred := range preds {
		if len(candidates) <= 1 {
			break
		}
		var kept []models.Contact
		for _, c := range candidates {
			if pred(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			candidates = kept
			applied = true
		}
	}
	return candidates, applied
}

// SelectContact narrows the raw candidate set down to the best matching
// contact. Candidates are restricted to active contacts first; the narrowing
// order is any-email, primary-email, both name parts, then email plus either
// name part. A match is accepted when exactly one candidate remains, or when
// at least one narrowing step applied and the remainder is tie-broken by most
// recent activity. An ambiguous set that was never narrowed yields no match
// unless the active set started with exactly one member.
func SelectContact(candidates []models.Contact, principalName, firstName, lastName string) (models.Contact, bool) {
	var active []models.Contact
	for _, c := range candidates {
		if c.IsActive == 1 {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return models.Contact{}, false
	}

	anyEmail := func(c models.Contact) bool {
		return strings.Contains(c.EmailAddress, principalName) ||
			strings.Contains(c.EmailAddress2, principalName) ||
			strings.Contains(c.EmailAddress3, principalName)
	}
	primaryEmail := func(c models.Contact) bool {
		return strings.Contains(c.EmailAddress, principalName)
	}
	bothNames := func(c models.Contact) bool {
		return strings.Contains(c.FirstName, firstName) && strings.Contains(c.LastName, lastName)
	}
	eitherName := func(c models.Contact) bool {
		return strings.Contains(c.FirstName, firstName) || strings.Contains(c.LastName, lastName)
	}
	emailAndName := func(c models.Contact) bool {
		return anyEmail(c) && eitherName(c)
	}

	narrowed, applied := Narrow(active, []Predicate{anyEmail, primaryEmail, bothNames, emailAndName})

	// Accept a lone survivor, or a still-ambiguous set provided at least one
	// filter managed to apply; the latter falls back to recency.
	if len(narrowed) != 1 && !applied {
		return models.Contact{}, false
	}

	sort.SliceStable(narrowed, func(i, j int) bool {
		return lastActivity(narrowed[i]).After(lastActivity(narrowed[j]))
	})
	return narrowed[0], true
}

func lastActivity(c models.Contact) time.Time {
	if c.LastActivityDate == nil {
		return time.Time{}
	}
	return *c.LastActivityDate
}
