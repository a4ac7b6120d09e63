package correlate

import (
	"testing"

	"idpmon/internal/autotask"
)

func TestTicketTitleTemplate(t *testing.T) {
	got := TicketTitle("Atypical travel", "Jane Doe")
	want := "IDP Alert: 'Atypical travel' for user 'Jane Doe'"
	if got != want {
		t.Fatalf("unexpected title: %q", got)
	}
	if again := TicketTitle("Atypical travel", "Jane Doe"); again != got {
		t.Fatalf("title must be deterministic, got %q then %q", got, again)
	}
}

func TestConnectedTitlesAreMutual(t *testing.T) {
	for _, pair := range AlertPairs() {
		a, b := pair[0], pair[1]
		if !contains(ConnectedTitles(a), b) {
			t.Fatalf("%q should be connected to %q", a, b)
		}
		if !contains(ConnectedTitles(b), a) {
			t.Fatalf("%q should be connected to %q", b, a)
		}
	}
}

func TestConnectedTitlesForUnknownTitle(t *testing.T) {
	if got := ConnectedTitles("Leaked credentials"); got != nil {
		t.Fatalf("unknown title should have no connections, got %v", got)
	}
}

func TestExistingTicketSearchCoversConnectedTypes(t *testing.T) {
	search := ExistingTicketSearch("Atypical travel", "Jane Doe")

	if search.TitleOp != autotask.OpEq || !search.TitleOr || !search.OpenOnly {
		t.Fatalf("unexpected search shape: %+v", search)
	}
	if len(search.Titles) != 3 {
		t.Fatalf("expected 3 titles, got %d", len(search.Titles))
	}
	if search.Titles[0] != "IDP Alert: 'Atypical travel' for user 'Jane Doe'" {
		t.Fatalf("first title must be the alert's own, got %q", search.Titles[0])
	}
	if !contains(search.Titles, "IDP Alert: 'Unfamiliar sign-in properties' for user 'Jane Doe'") ||
		!contains(search.Titles, "IDP Alert: 'Impossible travel' for user 'Jane Doe'") {
		t.Fatalf("connected titles missing: %v", search.Titles)
	}
}

func TestRelatedTicketSearchShape(t *testing.T) {
	search := RelatedTicketSearch("Jane Doe", []int{11, 12})

	if search.TitleOp != autotask.OpContains || search.TitleOr {
		t.Fatalf("related search must AND contains terms: %+v", search)
	}
	if len(search.Titles) != 2 || search.Titles[0] != "IDP Alert:" || search.Titles[1] != "for user 'Jane Doe'" {
		t.Fatalf("unexpected title terms: %v", search.Titles)
	}
	if search.CreatedWithinDays != 14 {
		t.Fatalf("expected a 14 day window, got %d", search.CreatedWithinDays)
	}
	if len(search.ExcludeIDs) != 2 || search.ExcludeIDs[0] != 11 || search.ExcludeIDs[1] != 12 {
		t.Fatalf("unexpected exclusions: %v", search.ExcludeIDs)
	}
	if search.OpenOnly {
		t.Fatalf("related search must include completed tickets")
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
