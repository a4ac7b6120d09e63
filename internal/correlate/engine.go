// Package correlate decides how each incoming risk-alert notification is
// represented in the ticketing system: update an existing ticket, create a
// new one, or hand an unrecognized alert category to the email fallback.
package correlate

import (
	"context"
	"fmt"
	"time"

	"idpmon/internal/autotask"
	"idpmon/internal/logger"
	"idpmon/internal/match"
	"idpmon/internal/metrics"
	"idpmon/pkg/models"
)

// AlertSource fetches alert and risk data from the alerting service. Lookups
// return nil without error when the resource does not exist.
type AlertSource interface {
	GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error)
	GetRiskDetection(ctx context.Context, id string) (*models.RiskDetection, error)
	ListRiskDetectionHistory(ctx context.Context, userPrincipalName, excludeID string) ([]models.RiskDetection, error)
	GetRiskyUser(ctx context.Context, userPrincipalName string) (*models.RiskyUser, error)
}

// Ticketing is the slice of the ticketing system the engine consumes.
type Ticketing interface {
	SearchTickets(ctx context.Context, spec autotask.TicketSearch) ([]models.Ticket, error)
	FindContactCandidates(ctx context.Context, principalName, firstName, lastName string) ([]models.Contact, error)
	PrimaryLocation(ctx context.Context) (int, error)
	PrimaryContract(ctx context.Context) (*int, error)
	CreateTicket(ctx context.Context, ticket models.NewTicket) (int, error)
	CreateTicketNote(ctx context.Context, note models.NewTicketNote) (int, error)
}

// Mailer delivers the unrecognized-alert-type fallback email.
type Mailer interface {
	SendUnrecognizedAlert(ctx context.Context, alert *models.SecurityAlert) error
}

// OutcomeKind is the terminal result of processing one notification.
type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeTicketCreated
	OutcomeTicketUpdated
	OutcomeAlertTypeUnrecognized
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTicketCreated:
		return "ticket_created"
	case OutcomeTicketUpdated:
		return "ticket_updated"
	case OutcomeAlertTypeUnrecognized:
		return "alert_type_unrecognized"
	default:
		return "failed"
	}
}

// Outcome is the terminal result of one notification: exactly one of a
// created ticket, an updated ticket, an unrecognized alert category, or a
// failure reason.
type Outcome struct {
	Kind     OutcomeKind
	TicketID int
	Category string
	Reason   string
}

// Fixed ticket template applied to every created ticket.
const (
	ticketPriority     = 1
	ticketStatusNew    = 1
	ticketQueueID      = 8
	ticketIssueType    = 31
	ticketSubIssueType = 222
	ticketSLAID        = 5
)

const (
	createIntro = "A new IDP Risk Detection Alert was created."
	updateIntro = "Another IDP Risk Detection Alert was created. Details: "
	noteTitle   = "New Alert Added"
)

// Engine correlates one notification at a time. It holds no mutable state,
// so notifications may be processed concurrently.
type Engine struct {
	source    AlertSource
	ticketing Ticketing
	mailer    Mailer
	companyID int
	now       func() time.Time
}

// NewEngine creates a correlation engine. The mailer may be nil, in which
// case the unrecognized-alert fallback is skipped.
func NewEngine(source AlertSource, ticketing Ticketing, mailer Mailer, companyID int) *Engine {
	return &Engine{
		source:    source,
		ticketing: ticketing,
		mailer:    mailer,
		companyID: companyID,
		now:       time.Now,
	}
}

// Process handles one change notification end to end and returns its
// terminal outcome. External failures are logged and surfaced as a failed
// outcome; nothing is retried or rolled back.
func (e *Engine) Process(ctx context.Context, notification models.ChangeNotification) Outcome {
	alertID := notification.ResourceData.ID
	logger.Infof("New alert detected. ID: %s ChangeType: %s Resource: %s",
		alertID, notification.ChangeType, notification.Resource)

	alert, err := e.source.GetAlert(ctx, alertID)
	if err != nil {
		metrics.ExternalCallErrors.WithLabelValues("alert_source").Inc()
		logger.Errorf("Failed to fetch alert %s: %v", alertID, err)
		return Outcome{Kind: OutcomeFailed, Reason: fmt.Sprintf("alert lookup failed: %v", err)}
	}
	detection, err := e.source.GetRiskDetection(ctx, alertID)
	if err != nil {
		metrics.ExternalCallErrors.WithLabelValues("alert_source").Inc()
		logger.Errorf("Failed to fetch risk detection %s: %v", alertID, err)
		return Outcome{Kind: OutcomeFailed, Reason: fmt.Sprintf("risk detection lookup failed: %v", err)}
	}

	switch {
	case alert != nil && detection != nil:
		return e.handleAlert(ctx, alertID, alert, detection)
	case alert != nil:
		return e.handleUnrecognized(ctx, alert)
	default:
		reason := fmt.Sprintf("alert '%s' could not be handled", alertID)
		logger.Errorf("Failure! %s", reason)
		return Outcome{Kind: OutcomeFailed, Reason: reason}
	}
}

func (e *Engine) handleAlert(ctx context.Context, alertID string, alert *models.SecurityAlert, detection *models.RiskDetection) Outcome {
	counts := e.historyCounts(ctx, alertID, detection.UserPrincipalName)

	riskyUser, err := e.source.GetRiskyUser(ctx, detection.UserPrincipalName)
	if err != nil {
		logger.Warnf("Failed to fetch risky user for %s: %v", detection.UserPrincipalName, err)
	}

	details := buildAlertDetails(alert, detection, riskyUser)
	title := TicketTitle(details.AlertTitle, details.UserDisplayName)

	existing, err := e.ticketing.SearchTickets(ctx, ExistingTicketSearch(details.AlertTitle, details.UserDisplayName))
	if err != nil {
		// A failed search degrades to "no existing ticket" so the alert is
		// still captured, at worst as a duplicate ticket.
		metrics.ExternalCallErrors.WithLabelValues("ticketing").Inc()
		logger.Errorf("Could not perform a ticket search: %v", err)
		existing = nil
	}

	var existingIDs []int
	for _, t := range existing {
		existingIDs = append(existingIDs, t.ID)
	}

	related, err := e.ticketing.SearchTickets(ctx, RelatedTicketSearch(details.UserDisplayName, existingIDs))
	if err != nil {
		logger.Warnf("Could not search related tickets: %v", err)
		related = nil
	}
	var relatedNumbers []string
	for _, t := range related {
		relatedNumbers = append(relatedNumbers, t.TicketNumber)
	}

	if len(existing) > 0 {
		return e.updateTicket(ctx, newestTicket(existing), details, relatedNumbers)
	}
	return e.createTicket(ctx, title, details, detection, relatedNumbers, counts)
}

func (e *Engine) updateTicket(ctx context.Context, ticket models.Ticket, details models.AlertDetails, relatedNumbers []string) Outcome {
	description := BuildTicketDescription(updateIntro, details, relatedNumbers, "")
	note := models.NewTicketNote{
		TicketID:    ticket.ID,
		Title:       noteTitle,
		Description: description,
	}
	if _, err := e.ticketing.CreateTicketNote(ctx, note); err != nil {
		metrics.ExternalCallErrors.WithLabelValues("ticketing").Inc()
		logger.Errorf("Failure! Could not update ticket #%d: %v", ticket.ID, err)
		return Outcome{Kind: OutcomeFailed, Reason: fmt.Sprintf("could not update ticket #%d", ticket.ID)}
	}
	logger.Infof("Updated ticket #%d", ticket.ID)
	return Outcome{Kind: OutcomeTicketUpdated, TicketID: ticket.ID}
}

func (e *Engine) createTicket(ctx context.Context, title string, details models.AlertDetails, detection *models.RiskDetection, relatedNumbers []string, counts *models.RiskHistoryCounts) Outcome {
	contractID, err := e.ticketing.PrimaryContract(ctx)
	if err != nil {
		logger.Warnf("Could not resolve default contract: %v", err)
		contractID = nil
	}

	locationID := autotask.DefaultLocationID
	if id, err := e.ticketing.PrimaryLocation(ctx); err != nil {
		logger.Warnf("Could not resolve primary location: %v", err)
	} else {
		locationID = id
	}

	contactID := e.resolveContact(ctx, detection)

	description := BuildTicketDescription(createIntro, details, relatedNumbers, HistoryFooter(counts))
	ticket := models.NewTicket{
		CompanyID:               e.companyID,
		CompanyLocationID:       locationID,
		Priority:                ticketPriority,
		Status:                  ticketStatusNew,
		QueueID:                 ticketQueueID,
		IssueType:               ticketIssueType,
		SubIssueType:            ticketSubIssueType,
		ServiceLevelAgreementID: ticketSLAID,
		ContractID:              contractID,
		ContactID:               contactID,
		Title:                   title,
		Description:             description,
	}

	ticketID, err := e.ticketing.CreateTicket(ctx, ticket)
	if err != nil {
		metrics.ExternalCallErrors.WithLabelValues("ticketing").Inc()
		logger.Errorf("Creating new ticket failed! Title of would be ticket: %s (%v)", title, err)
		return Outcome{Kind: OutcomeFailed, Reason: "could not create a new ticket"}
	}
	logger.Infof("New ticket created: %d", ticketID)
	return Outcome{Kind: OutcomeTicketCreated, TicketID: ticketID}
}

func (e *Engine) handleUnrecognized(ctx context.Context, alert *models.SecurityAlert) Outcome {
	if e.mailer != nil {
		if err := e.mailer.SendUnrecognizedAlert(ctx, alert); err != nil {
			metrics.ExternalCallErrors.WithLabelValues("email").Inc()
			logger.Warnf("Failed to send unrecognized-alert email: %v", err)
		} else {
			logger.Infof("Sent email for new type: %s", alert.Category)
		}
	}
	return Outcome{Kind: OutcomeAlertTypeUnrecognized, Category: alert.Category}
}

// historyCounts computes risk-detection counts for the user over the
// trailing week, month and all time, excluding the current alert. History
// failures degrade to no counts rather than failing the alert.
func (e *Engine) historyCounts(ctx context.Context, alertID, userPrincipalName string) *models.RiskHistoryCounts {
	history, err := e.source.ListRiskDetectionHistory(ctx, userPrincipalName, alertID)
	if err != nil {
		logger.Warnf("Failed to fetch risk history for %s: %v", userPrincipalName, err)
		return nil
	}

	now := e.now()
	counts := &models.RiskHistoryCounts{Total: len(history)}
	for _, rd := range history {
		if rd.ActivityDateTime.After(now.AddDate(0, 0, -7)) {
			counts.LastWeek++
		}
		if rd.ActivityDateTime.After(now.AddDate(0, 0, -30)) {
			counts.LastMonth++
		}
	}
	return counts
}

func (e *Engine) resolveContact(ctx context.Context, detection *models.RiskDetection) *int {
	first, last := match.Tokens(detection.UserDisplayName)
	candidates, err := e.ticketing.FindContactCandidates(ctx, detection.UserPrincipalName, first, last)
	if err != nil {
		logger.Warnf("Could not query contacts for %s: %v", detection.UserPrincipalName, err)
		return nil
	}
	contact, ok := match.SelectContact(candidates, detection.UserPrincipalName, first, last)
	if !ok {
		return nil
	}
	id := contact.ID
	return &id
}

func buildAlertDetails(alert *models.SecurityAlert, detection *models.RiskDetection, riskyUser *models.RiskyUser) models.AlertDetails {
	details := models.AlertDetails{
		UserDisplayName:    detection.UserDisplayName,
		Username:           detection.UserPrincipalName,
		UserID:             detection.UserID,
		AlertTitle:         alert.Title,
		AlertCategory:      alert.Category,
		AlertDescription:   alert.Description,
		AlertEventDateTime: alert.EventDateTime,
		AlertSeverity:      alert.Severity,
		Activity:           detection.Activity,
		IPAddress:          detection.IPAddress,
		RiskEventType:      detection.RiskEventType,
		Source:             detection.Source,
		AdditionalInfo:     detection.AdditionalInfo,
	}
	if len(alert.UserStates) > 0 {
		details.Location = alert.UserStates[0].LogonLocation
	}
	if riskyUser != nil {
		details.UserRiskLevel = riskyUser.RiskLevel
		details.UserRiskDetails = riskyUser.RiskDetail
		details.UserRiskReportID = riskyUser.ID
	}
	return details
}

func newestTicket(tickets []models.Ticket) models.Ticket {
	best := tickets[0]
	for _, t := range tickets[1:] {
		if createDate(t).After(createDate(best)) {
			best = t
		}
	}
	return best
}

func createDate(t models.Ticket) time.Time {
	if t.CreateDate == nil {
		return time.Time{}
	}
	return *t.CreateDate
}
