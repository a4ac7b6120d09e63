package correlate

import (
	"fmt"

	"idpmon/internal/autotask"
)

// ticketTitlePrefix marks every ticket this service creates; the related
// search keys on it.
const ticketTitlePrefix = "IDP Alert:"

// relatedTicketWindowDays bounds how far back the related-ticket search
// looks.
const relatedTicketWindowDays = 14

// TicketTitle renders the fixed ticket title for an alert type and user.
func TicketTitle(alertTitle, userDisplayName string) string {
	return fmt.Sprintf("IDP Alert: '%s' for user '%s'", alertTitle, userDisplayName)
}

// ExistingTicketSearch builds the query for open tickets already covering
// this alert type, or any connected alert type, for the same user.
func ExistingTicketSearch(alertTitle, userDisplayName string) autotask.TicketSearch {
	titles := []string{TicketTitle(alertTitle, userDisplayName)}
	for _, connected := range ConnectedTitles(alertTitle) {
		titles = append(titles, TicketTitle(connected, userDisplayName))
	}
	return autotask.TicketSearch{
		Titles:   titles,
		TitleOp:  autotask.OpEq,
		TitleOr:  true,
		OpenOnly: true,
	}
}

// RelatedTicketSearch builds the query for recent tickets of any alert type
// for the same user, excluding tickets already identified as existing.
func RelatedTicketSearch(userDisplayName string, excludeIDs []int) autotask.TicketSearch {
	return autotask.TicketSearch{
		Titles: []string{
			ticketTitlePrefix,
			fmt.Sprintf("for user '%s'", userDisplayName),
		},
		TitleOp:           autotask.OpContains,
		CreatedWithinDays: relatedTicketWindowDays,
		ExcludeIDs:        excludeIDs,
	}
}
