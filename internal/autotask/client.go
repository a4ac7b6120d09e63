// Package autotask is a client for the ticketing-system relay API. Every
// request is a POST envelope naming the target endpoint, the operation type
// and optional JSON filters, authenticated with an api key header.
package autotask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"idpmon/pkg/models"
)

// Config configures the client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the ticketing-system relay API.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	now    func() time.Time
}

// NewClient creates a ticketing client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("autotask URL is empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("autotask api key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

type requestEnvelope struct {
	Endpoint      string `json:"endpoint"`
	Type          string `json:"type"`
	Filters       string `json:"filters,omitempty"`
	IncludeFields string `json:"includeFields,omitempty"`
	Payload       string `json:"payload,omitempty"`
}

type createdResource struct {
	ItemID int `json:"itemId"`
}

func (c *Client) send(ctx context.Context, env requestEnvelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return data, nil
}

func (c *Client) query(ctx context.Context, endpoint string, filters []FilterItem, includeFields []string) ([]byte, error) {
	env := requestEnvelope{Endpoint: endpoint, Type: "query"}
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filters: %w", err)
		}
		env.Filters = string(raw)
	}
	if len(includeFields) > 0 {
		raw, err := json.Marshal(includeFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal include fields: %w", err)
		}
		env.IncludeFields = string(raw)
	}
	return c.send(ctx, env)
}

func (c *Client) create(ctx context.Context, endpoint string, payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}
	data, err := c.send(ctx, requestEnvelope{Endpoint: endpoint, Type: "create", Payload: string(raw)})
	if err != nil {
		return 0, err
	}
	var created createdResource
	if err := json.Unmarshal(data, &created); err != nil {
		return 0, fmt.Errorf("failed to decode create response: %w", err)
	}
	if created.ItemID == 0 {
		return 0, fmt.Errorf("create returned no item id: %s", data)
	}
	return created.ItemID, nil
}

func (c *Client) update(ctx context.Context, endpoint string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = c.send(ctx, requestEnvelope{Endpoint: endpoint, Type: "update", Payload: string(raw)})
	return err
}

type itemsPage[T any] struct {
	Items []T `json:"items"`
}

func decodeItems[T any](data []byte) ([]T, error) {
	var page itemsPage[T]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return page.Items, nil
}

// SearchTickets runs a ticket search built from the given spec.
func (c *Client) SearchTickets(ctx context.Context, spec TicketSearch) ([]models.Ticket, error) {
	data, err := c.query(ctx, "Tickets", spec.Filters(c.now()), nil)
	if err != nil {
		return nil, err
	}
	return decodeItems[models.Ticket](data)
}

// FindContactCandidates queries active-or-not contacts whose any email
// address contains the principal name, or whose first or last name contains
// the corresponding display-name token.
func (c *Client) FindContactCandidates(ctx context.Context, principalName, firstName, lastName string) ([]models.Contact, error) {
	filters := []FilterItem{{
		Op: OpOr,
		Items: []FilterItem{
			{Op: OpContains, Field: "emailAddress", Value: principalName},
			{Op: OpContains, Field: "emailAddress2", Value: principalName},
			{Op: OpContains, Field: "emailAddress3", Value: principalName},
			{Op: OpContains, Field: "firstName", Value: firstName},
			{Op: OpContains, Field: "lastName", Value: lastName},
		},
	}}
	fields := []string{"id", "emailAddress", "emailAddress2", "emailAddress3", "firstName", "lastName", "isActive", "lastActivityDate"}

	data, err := c.query(ctx, "Contacts", filters, fields)
	if err != nil {
		return nil, err
	}
	return decodeItems[models.Contact](data)
}

// DefaultLocationID is used when no primary or active location resolves.
const DefaultLocationID = 10

// PrimaryLocation resolves the company's primary location id: the first
// primary location, else the first active one, else DefaultLocationID.
func (c *Client) PrimaryLocation(ctx context.Context) (int, error) {
	data, err := c.query(ctx, "CompanyLocations", nil, []string{"id", "isActive", "isPrimary"})
	if err != nil {
		return 0, err
	}
	locations, err := decodeItems[models.Location](data)
	if err != nil {
		return 0, err
	}

	for _, l := range locations {
		if l.IsPrimary && l.ID > 0 {
			return l.ID, nil
		}
	}
	for _, l := range locations {
		if l.IsActive && l.ID > 0 {
			return l.ID, nil
		}
	}
	return DefaultLocationID, nil
}

// PrimaryContract resolves the company's default contract id, or nil when no
// contract is flagged as default.
func (c *Client) PrimaryContract(ctx context.Context) (*int, error) {
	filters := []FilterItem{{Op: OpEq, Field: "IsDefaultContract", Value: true}}
	data, err := c.query(ctx, "Contracts", filters, []string{"id"})
	if err != nil {
		return nil, err
	}
	contracts, err := decodeItems[models.Contract](data)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	id := contracts[0].ID
	return &id, nil
}

// CreateTicket creates a ticket and returns its id.
func (c *Client) CreateTicket(ctx context.Context, ticket models.NewTicket) (int, error) {
	return c.create(ctx, "Tickets", ticket)
}

type ticketStatusUpdate struct {
	ID     int `json:"id"`
	Status int `json:"status"`
}

// StatusAwaitingResponse is the ticket status set after a note is appended;
// the ticketing system treats any new note as needing staff attention.
const StatusAwaitingResponse = 21

// CreateTicketNote appends a note to a ticket and returns the note id. The
// ticket's status is flipped to awaiting-response as part of the call.
func (c *Client) CreateTicketNote(ctx context.Context, note models.NewTicketNote) (int, error) {
	if note.NoteType == 0 {
		note.NoteType = 1
	}
	if note.Publish == 0 {
		note.Publish = 1
	}
	noteID, err := c.create(ctx, "TicketNotes", note)
	if err != nil {
		return 0, err
	}

	if err := c.update(ctx, "Tickets", ticketStatusUpdate{ID: note.TicketID, Status: StatusAwaitingResponse}); err != nil {
		return noteID, fmt.Errorf("note created but status update failed: %w", err)
	}
	return noteID, nil
}
