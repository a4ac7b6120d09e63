package models

import "time"

// Contact is a contact record returned by the ticketing system. Read-only
// projection; never persisted here.
type Contact struct {
	ID               int        `json:"id"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	EmailAddress     string     `json:"emailAddress,omitempty"`
	EmailAddress2    string     `json:"emailAddress2,omitempty"`
	EmailAddress3    string     `json:"emailAddress3,omitempty"`
	IsActive         int        `json:"isActive"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
}

// Ticket is a ticket record returned by the ticketing system. A ticket is
// open while both completion fields are absent.
type Ticket struct {
	ID                    int        `json:"id"`
	Title                 string     `json:"title"`
	TicketNumber          string     `json:"ticketNumber,omitempty"`
	CreateDate            *time.Time `json:"createDate,omitempty"`
	CompletedByResourceID *int       `json:"completedByResourceID,omitempty"`
	CompletedDate         *time.Time `json:"completedDate,omitempty"`
	CompanyID             int        `json:"companyID,omitempty"`
	Status                int        `json:"status,omitempty"`
}

// Open reports whether the ticket has not been completed.
func (t Ticket) Open() bool {
	return t.CompletedByResourceID == nil && t.CompletedDate == nil
}

// Location is a company location record.
type Location struct {
	ID        int  `json:"id"`
	IsActive  bool `json:"isActive"`
	IsPrimary bool `json:"isPrimary"`
}

// Contract is a contract record; only the id is ever consumed.
type Contract struct {
	ID int `json:"id"`
}

// NewTicket is the payload for creating a ticket.
type NewTicket struct {
	CompanyID               int    `json:"companyID"`
	CompanyLocationID       int    `json:"companyLocationID"`
	Priority                int    `json:"priority"`
	Status                  int    `json:"status"`
	QueueID                 int    `json:"queueID"`
	IssueType               int    `json:"issueType"`
	SubIssueType            int    `json:"subIssueType"`
	ServiceLevelAgreementID int    `json:"serviceLevelAgreementID"`
	ContractID              *int   `json:"contractID,omitempty"`
	ContactID               *int   `json:"contactID,omitempty"`
	Title                   string `json:"title"`
	Description             string `json:"description"`
}

// NewTicketNote is the payload for appending a note to a ticket.
type NewTicketNote struct {
	TicketID    int    `json:"ticketID"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	NoteType    int    `json:"noteType"`
	Publish     int    `json:"publish"`
}
