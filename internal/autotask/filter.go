package autotask

import (
	"time"
)

// Filter operators understood by the ticketing-system query API.
const (
	OpAnd      = "and"
	OpOr       = "or"
	OpEq       = "eq"
	OpNotEq    = "noteq"
	OpContains = "contains"
	OpNotExist = "notExist"
	OpGt       = "gt"
)

// FilterItem is one node of a query filter expression. Grouping operators
// carry Items; leaf operators carry Field and usually Value.
type FilterItem struct {
	Op    string       `json:"op"`
	Field string       `json:"field,omitempty"`
	Value any          `json:"value,omitempty"`
	Items []FilterItem `json:"items,omitempty"`
}

// TicketSearch describes a ticket query. Title terms are matched with
// TitleOp, OR'd together when TitleOr is set and AND'd otherwise. OpenOnly
// restricts results to tickets lacking both completion fields. A positive
// CreatedWithinDays bounds the creation date; ExcludeIDs are removed with
// not-equal predicates.
type TicketSearch struct {
	Titles            []string
	TitleOp           string
	TitleOr           bool
	OpenOnly          bool
	CreatedWithinDays int
	ExcludeIDs        []int
}

// Filters renders the search spec as a filter expression, anchored at the
// given current time for the creation-date bound.
func (s TicketSearch) Filters(now time.Time) []FilterItem {
	titleOp := s.TitleOp
	if titleOp == "" {
		titleOp = OpContains
	}

	var items []FilterItem
	if s.TitleOr && len(s.Titles) > 1 {
		var titleItems []FilterItem
		for _, t := range s.Titles {
			titleItems = append(titleItems, FilterItem{Op: titleOp, Field: "title", Value: t})
		}
		items = append(items, FilterItem{Op: OpOr, Items: titleItems})
	} else {
		for _, t := range s.Titles {
			items = append(items, FilterItem{Op: titleOp, Field: "title", Value: t})
		}
	}

	if s.OpenOnly {
		items = append(items,
			FilterItem{Op: OpNotExist, Field: "CompletedByResourceID"},
			FilterItem{Op: OpNotExist, Field: "CompletedDate"},
		)
	}
	if s.CreatedWithinDays > 0 {
		cutoff := now.AddDate(0, 0, -s.CreatedWithinDays)
		items = append(items, FilterItem{
			Op:    OpGt,
			Field: "createDate",
			Value: cutoff.Format("2006-01-02"),
		})
	}
	for _, id := range s.ExcludeIDs {
		items = append(items, FilterItem{Op: OpNotEq, Field: "id", Value: id})
	}

	return []FilterItem{{Op: OpAnd, Items: items}}
}
