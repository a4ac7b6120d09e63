package autotask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idpmon/pkg/models"
)

type recordedEnvelope struct {
	Endpoint      string `json:"endpoint"`
	Type          string `json:"type"`
	Filters       string `json:"filters"`
	IncludeFields string `json:"includeFields"`
	Payload       string `json:"payload"`
}

// relayStub answers each envelope in order and records what was received.
type relayStub struct {
	t         *testing.T
	received  []recordedEnvelope
	responses []string
}

func (s *relayStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "relay-key" {
			s.t.Errorf("missing api key header")
		}
		var env recordedEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			s.t.Errorf("failed to decode envelope: %v", err)
		}
		s.received = append(s.received, env)
		if len(s.responses) == 0 {
			w.Write([]byte(`{}`))
			return
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]
		w.Write([]byte(resp))
	}
}

func newTestClient(t *testing.T, stub *relayStub) *Client {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, APIKey: "relay-key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return client
}

func TestSearchTicketsSendsQueryEnvelope(t *testing.T) {
	stub := &relayStub{t: t, responses: []string{
		`{"items":[{"id":42,"title":"IDP Alert: 'Atypical travel' for user 'Jane Doe'","ticketNumber":"T20260042"}]}`,
	}}
	client := newTestClient(t, stub)

	tickets, err := client.SearchTickets(context.Background(), TicketSearch{
		Titles:  []string{"IDP Alert: 'Atypical travel' for user 'Jane Doe'"},
		TitleOp: OpEq,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != 42 {
		t.Fatalf("unexpected tickets: %+v", tickets)
	}

	if len(stub.received) != 1 {
		t.Fatalf("expected 1 request, got %d", len(stub.received))
	}
	env := stub.received[0]
	if env.Endpoint != "Tickets" || env.Type != "query" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var filters []FilterItem
	if err := json.Unmarshal([]byte(env.Filters), &filters); err != nil {
		t.Fatalf("filters must be a JSON string: %v", err)
	}
	if len(filters) != 1 || filters[0].Op != OpAnd {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestCreateTicketNoteFlipsTicketStatus(t *testing.T) {
	stub := &relayStub{t: t, responses: []string{
		`{"itemId":77}`,
		`{}`,
	}}
	client := newTestClient(t, stub)

	noteID, err := client.CreateTicketNote(context.Background(), models.NewTicketNote{
		TicketID:    200,
		Title:       "New Alert Added",
		Description: "details",
	})
	if err != nil {
		t.Fatalf("note creation failed: %v", err)
	}
	if noteID != 77 {
		t.Fatalf("unexpected note id: %d", noteID)
	}

	if len(stub.received) != 2 {
		t.Fatalf("expected note create plus status update, got %d requests", len(stub.received))
	}

	create := stub.received[0]
	if create.Endpoint != "TicketNotes" || create.Type != "create" {
		t.Fatalf("unexpected create envelope: %+v", create)
	}
	var note map[string]any
	if err := json.Unmarshal([]byte(create.Payload), &note); err != nil {
		t.Fatalf("payload must be a JSON string: %v", err)
	}
	if note["noteType"] != float64(1) || note["publish"] != float64(1) {
		t.Fatalf("note defaults missing: %v", note)
	}

	update := stub.received[1]
	if update.Endpoint != "Tickets" || update.Type != "update" {
		t.Fatalf("unexpected update envelope: %+v", update)
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(update.Payload), &status); err != nil {
		t.Fatalf("update payload must be a JSON string: %v", err)
	}
	if status["id"] != float64(200) || status["status"] != float64(StatusAwaitingResponse) {
		t.Fatalf("unexpected status update: %v", status)
	}
}

func TestPrimaryLocationFallsBackThroughActiveToDefault(t *testing.T) {
	stub := &relayStub{t: t, responses: []string{
		`{"items":[{"id":3,"isActive":true,"isPrimary":false},{"id":5,"isActive":true,"isPrimary":true}]}`,
		`{"items":[{"id":3,"isActive":true,"isPrimary":false}]}`,
		`{"items":[]}`,
	}}
	client := newTestClient(t, stub)
	ctx := context.Background()

	if id, err := client.PrimaryLocation(ctx); err != nil || id != 5 {
		t.Fatalf("expected primary location 5, got %d (%v)", id, err)
	}
	if id, err := client.PrimaryLocation(ctx); err != nil || id != 3 {
		t.Fatalf("expected active location 3, got %d (%v)", id, err)
	}
	if id, err := client.PrimaryLocation(ctx); err != nil || id != DefaultLocationID {
		t.Fatalf("expected default location, got %d (%v)", id, err)
	}
}

func TestPrimaryContractReturnsNilWhenNoDefault(t *testing.T) {
	stub := &relayStub{t: t, responses: []string{`{"items":[]}`}}
	client := newTestClient(t, stub)

	id, err := client.PrimaryContract(context.Background())
	if err != nil {
		t.Fatalf("contract query failed: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil contract id, got %v", *id)
	}
}
